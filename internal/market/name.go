// Package market provides typed views over the rate-paced fetcher: price
// lookups, rarity/collection search, and the marketHashName / exterior /
// rarity domain vocabulary shared by the engine and the sync worker.
package market

import (
	"strings"
)

// Exterior is one of the five wear-quality buckets a float value falls into.
type Exterior string

const (
	FactoryNew    Exterior = "Factory New"
	MinimalWear   Exterior = "Minimal Wear"
	FieldTested   Exterior = "Field-Tested"
	WellWorn      Exterior = "Well-Worn"
	BattleScarred Exterior = "Battle-Scarred"
)

// exteriorBound is a half-open [min, max) range, except the last bucket,
// which is closed on both ends.
type exteriorBound struct {
	exterior Exterior
	min, max float64
}

// bounds is ordered low to high. Since each range excludes its upper bound,
// an exact boundary value (0.07, 0.15, 0.38, 0.45) falls in the higher
// bucket that it opens.
var bounds = []exteriorBound{
	{FactoryNew, 0.00, 0.07},
	{MinimalWear, 0.07, 0.15},
	{FieldTested, 0.15, 0.38},
	{WellWorn, 0.38, 0.45},
	{BattleScarred, 0.45, 1.00},
}

// Bucket maps a float in [0, 1] to its exterior. Every value in range maps
// to exactly one bucket: lower bound inclusive, upper bound exclusive,
// except the final bucket (Battle-Scarred) which is closed at 1.0.
func Bucket(f float64) Exterior {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	for _, b := range bounds {
		if f >= b.min && (f < b.max || b.exterior == BattleScarred) {
			return b.exterior
		}
	}
	return BattleScarred
}

// WearRange returns the [min, max) bounds owned by an exterior.
func WearRange(e Exterior) (min, max float64) {
	for _, b := range bounds {
		if b.exterior == e {
			return b.min, b.max
		}
	}
	return 0, 1
}

// ToMarketHashName joins a base item name with its exterior into the
// canonical "<baseName> (<exterior>)" identifier.
func ToMarketHashName(baseName string, e Exterior) string {
	return baseName + " (" + string(e) + ")"
}

// BaseFromMarketHash strips the trailing "(<exterior>)" suffix, returning
// the item's base name unchanged when no such suffix is present.
func BaseFromMarketHash(name string) string {
	idx := strings.LastIndex(name, " (")
	if idx < 0 || !strings.HasSuffix(name, ")") {
		return name
	}
	return name[:idx]
}

// ParseExterior extracts the exterior from a marketHashName, defaulting to
// Field-Tested when absent, per the canonical-name grammar.
func ParseExterior(name string) Exterior {
	idx := strings.LastIndex(name, " (")
	if idx < 0 || !strings.HasSuffix(name, ")") {
		return FieldTested
	}
	suffix := Exterior(name[idx+2 : len(name)-1])
	switch suffix {
	case FactoryNew, MinimalWear, FieldTested, WellWorn, BattleScarred:
		return suffix
	default:
		return FieldTested
	}
}

// ParsedName is the decomposition the sync worker extracts from a vendor
// item name before upserting a Skin row.
type ParsedName struct {
	BaseName   string
	Exterior   Exterior
	IsStatTrak bool
	IsSouvenir bool
}

// ParseItemName strips the StatTrak/Souvenir prefixes and exterior suffix
// from a vendor-reported full item name.
func ParseItemName(name string) ParsedName {
	s := strings.TrimSpace(name)
	p := ParsedName{Exterior: ParseExterior(s)}

	base := BaseFromMarketHash(s)

	const statTrakPrefix = "StatTrak™ "
	const souvenirPrefix = "Souvenir "
	if strings.HasPrefix(base, statTrakPrefix) {
		p.IsStatTrak = true
		base = strings.TrimPrefix(base, statTrakPrefix)
	}
	if strings.HasPrefix(base, souvenirPrefix) {
		p.IsSouvenir = true
		base = strings.TrimPrefix(base, souvenirPrefix)
	}

	p.BaseName = base
	return p
}
