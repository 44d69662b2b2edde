package floatcatalog

// CollectionMeta describes a compile-time known collection: its stable id,
// display name, and vendor search tag.
type CollectionMeta struct {
	ID          string
	DisplayName string
	SteamTag    string
}

// KnownCollections is a compile-time reference table of collections. It
// holds a small representative slice, not the full vendor list. No other
// package reads it: the sync worker takes its collection list from the
// vendor's app-filter facet, and the engine takes its entries from its
// CollectionSource.
var KnownCollections = []CollectionMeta{
	{ID: "set_dust", DisplayName: "The Dust Collection", SteamTag: "set_dust"},
	{ID: "set_italy", DisplayName: "The Italy Collection", SteamTag: "set_italy"},
	{ID: "set_mirage", DisplayName: "The Mirage Collection", SteamTag: "set_mirage"},
	{ID: "set_office", DisplayName: "The Office Collection", SteamTag: "set_office"},
}

// knownRanges returns the compile-time base-name -> Range table. Keys are
// pre-normalized (lower-cased, trimmed) so Lookup can match directly.
func knownRanges() map[string]Range {
	return map[string]Range{
		normalize("AK-47 | Redline"):         {Min: 0.10, Max: 0.70},
		normalize("AWP | Asiimov"):           {Min: 0.18, Max: 1.00},
		normalize("M4A4 | Howl"):             {Min: 0.00, Max: 0.80},
		normalize("Desert Eagle | Blaze"):    {Min: 0.00, Max: 0.08},
		normalize("USP-S | Kill Confirmed"):  {Min: 0.00, Max: 0.50},
	}
}
