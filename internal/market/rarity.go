package market

// Rarity is one rung of the closed, ordered rarity ladder. Input items to a
// trade-up must be exactly one rarity below the target output's rarity.
type Rarity string

const (
	Consumer   Rarity = "Consumer"
	Industrial Rarity = "Industrial"
	MilSpec    Rarity = "Mil-Spec"
	Restricted Rarity = "Restricted"
	Classified Rarity = "Classified"
	Covert     Rarity = "Covert"
)

// Ladder is the canonical low-to-high rarity order the sync worker walks.
var Ladder = []Rarity{Consumer, Industrial, MilSpec, Restricted, Classified, Covert}

// tags maps a rarity to the vendor's app-filter tag string.
var tags = map[Rarity]string{
	Consumer:   "tag_Rarity_Common_Weapon",
	Industrial: "tag_Rarity_Uncommon_Weapon",
	MilSpec:    "tag_Rarity_Rare_Weapon",
	Restricted: "tag_Rarity_Mythical_Weapon",
	Classified: "tag_Rarity_Legendary_Weapon",
	Covert:     "tag_Rarity_Ancient_Weapon",
}

// Tag returns the vendor-specific search tag for r.
func (r Rarity) Tag() string { return tags[r] }

// Index returns r's position on Ladder, or -1 if r is not a known rarity.
func (r Rarity) Index() int {
	for i, x := range Ladder {
		if x == r {
			return i
		}
	}
	return -1
}

// Below returns the rarity exactly one rung below r, and false at the floor.
func (r Rarity) Below() (Rarity, bool) {
	i := r.Index()
	if i <= 0 {
		return "", false
	}
	return Ladder[i-1], true
}
