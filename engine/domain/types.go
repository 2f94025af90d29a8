// Package domain defines the normalized legislation document model: typed
// enumerations for document types, categories, extents and provisions, the
// Document/Section/Amendment/ExplanatoryNote records stored in the vector
// collections, and validation at pipeline entry points.
package domain

// DocType is the closed enumeration of legislation type tags used in
// document IDs and portal listing URLs.
type DocType string

const (
	TypeUKPGA DocType = "ukpga" // UK Public General Acts
	TypeUKLA  DocType = "ukla"  // UK Local Acts
	TypeUKCM  DocType = "ukcm"  // UK Church Measures
	TypeASP   DocType = "asp"   // Acts of the Scottish Parliament
	TypeASC   DocType = "asc"   // Acts of Senedd Cymru
	TypeANAW  DocType = "anaw"  // Acts of the National Assembly for Wales
	TypeMWA   DocType = "mwa"   // Measures of the National Assembly for Wales
	TypeNIA   DocType = "nia"   // Acts of the Northern Ireland Assembly
	TypeAOSP  DocType = "aosp"  // Acts of the Old Scottish Parliament
	TypeAEP   DocType = "aep"   // Acts of the English Parliament
	TypeAIP   DocType = "aip"   // Acts of the Old Irish Parliament
	TypeAPGB  DocType = "apgb"  // Acts of the Parliament of Great Britain
	TypeGBLA  DocType = "gbla"  // Local Acts of the Parliament of Great Britain
	TypeGBPPA DocType = "gbppa" // Private and Personal Acts of the Parliament of Great Britain
	TypeAPNI  DocType = "apni"  // Acts of the Northern Ireland Parliament
	TypeMNIA  DocType = "mnia"  // Measures of the Northern Ireland Assembly
	TypeUKSI  DocType = "uksi"  // UK Statutory Instruments
	TypeWSI   DocType = "wsi"   // Wales Statutory Instruments
	TypeSSI   DocType = "ssi"   // Scottish Statutory Instruments
	TypeNISR  DocType = "nisr"  // Northern Ireland Statutory Rules
	TypeNISI  DocType = "nisi"  // Northern Ireland Orders in Council
	TypeUKCI  DocType = "ukci"  // Church Instruments
	TypeUKMD  DocType = "ukmd"  // UK Ministerial Directions
	TypeUKMO  DocType = "ukmo"  // UK Ministerial Orders
	TypeUKSRO DocType = "uksro" // UK Statutory Rules and Orders
	TypeEUR   DocType = "eur"   // Retained EU Regulations
	TypeEUDN  DocType = "eudn"  // Retained EU Decisions
	TypeEUDR  DocType = "eudr"  // Retained EU Directives
)

// Category classifies a document by the nature of its source.
type Category string

const (
	CategoryPrimary   Category = "primary"
	CategorySecondary Category = "secondary"
	CategoryEuropean  Category = "european"
)

// YearRange is the historical span in which a document type was produced.
// Zero Max means "still active".
type YearRange struct {
	Min int
	Max int
}

// Contains reports whether year falls within the active range.
func (r YearRange) Contains(year int) bool {
	if year < r.Min {
		return false
	}
	return r.Max == 0 || year <= r.Max
}

// typeInfo carries the fixed per-type category and active year range.
type typeInfo struct {
	category Category
	years    YearRange
}

// typeTable is the fixed table driving category derivation (I5) and
// enumeration skipping (C3).
var typeTable = map[DocType]typeInfo{
	TypeUKPGA: {CategoryPrimary, YearRange{Min: 1801}},
	TypeUKLA:  {CategoryPrimary, YearRange{Min: 1801}},
	TypeUKCM:  {CategoryPrimary, YearRange{Min: 1920}},
	TypeASP:   {CategoryPrimary, YearRange{Min: 1999}},
	TypeASC:   {CategoryPrimary, YearRange{Min: 2020}},
	TypeANAW:  {CategoryPrimary, YearRange{Min: 2012, Max: 2020}},
	TypeMWA:   {CategoryPrimary, YearRange{Min: 2008, Max: 2011}},
	TypeNIA:   {CategoryPrimary, YearRange{Min: 2000}},
	TypeAOSP:  {CategoryPrimary, YearRange{Min: 1424, Max: 1707}},
	TypeAEP:   {CategoryPrimary, YearRange{Min: 1267, Max: 1706}},
	TypeAIP:   {CategoryPrimary, YearRange{Min: 1495, Max: 1800}},
	TypeAPGB:  {CategoryPrimary, YearRange{Min: 1707, Max: 1800}},
	TypeGBLA:  {CategoryPrimary, YearRange{Min: 1707, Max: 1800}},
	TypeGBPPA: {CategoryPrimary, YearRange{Min: 1707, Max: 1800}},
	TypeAPNI:  {CategoryPrimary, YearRange{Min: 1921, Max: 1972}},
	TypeMNIA:  {CategoryPrimary, YearRange{Min: 1974, Max: 1974}},
	TypeUKSI:  {CategorySecondary, YearRange{Min: 1948}},
	TypeWSI:   {CategorySecondary, YearRange{Min: 1999}},
	TypeSSI:   {CategorySecondary, YearRange{Min: 1999}},
	TypeNISR:  {CategorySecondary, YearRange{Min: 1991}},
	TypeNISI:  {CategorySecondary, YearRange{Min: 1972}},
	TypeUKCI:  {CategorySecondary, YearRange{Min: 1991}},
	TypeUKMD:  {CategorySecondary, YearRange{Min: 1946}},
	TypeUKMO:  {CategorySecondary, YearRange{Min: 1861}},
	TypeUKSRO: {CategorySecondary, YearRange{Min: 1894, Max: 1947}},
	TypeEUR:   {CategoryEuropean, YearRange{Min: 1958, Max: 2020}},
	TypeEUDN:  {CategoryEuropean, YearRange{Min: 1958, Max: 2020}},
	TypeEUDR:  {CategoryEuropean, YearRange{Min: 1958, Max: 2020}},
}

// KnownType reports whether t is in the closed enumeration.
func KnownType(t DocType) bool {
	_, ok := typeTable[t]
	return ok
}

// AllTypes returns the closed type enumeration in stable order.
func AllTypes() []DocType {
	return []DocType{
		TypeUKPGA, TypeUKLA, TypeUKCM, TypeASP, TypeASC, TypeANAW, TypeMWA,
		TypeNIA, TypeAOSP, TypeAEP, TypeAIP, TypeAPGB, TypeGBLA, TypeGBPPA,
		TypeAPNI, TypeMNIA, TypeUKSI, TypeWSI, TypeSSI, TypeNISR, TypeNISI,
		TypeUKCI, TypeUKMD, TypeUKMO, TypeUKSRO, TypeEUR, TypeEUDN, TypeEUDR,
	}
}

// TypesForCategory returns every type in the given category.
func TypesForCategory(c Category) []DocType {
	var out []DocType
	for _, t := range AllTypes() {
		if typeTable[t].category == c {
			out = append(out, t)
		}
	}
	return out
}

// CategoryOf derives the category from the type table. Unknown types
// default to primary.
func CategoryOf(t DocType) Category {
	if info, ok := typeTable[t]; ok {
		return info.category
	}
	return CategoryPrimary
}

// ActiveYears returns the historical active range for a type.
func ActiveYears(t DocType) YearRange {
	return typeTable[t].years
}

// ProvisionType distinguishes the two kinds of stored provisions.
type ProvisionType string

const (
	ProvisionSection  ProvisionType = "section"
	ProvisionSchedule ProvisionType = "schedule"
)

// Extent is the jurisdictional applicability of a provision.
type Extent string

const (
	ExtentEngland         Extent = "England"
	ExtentWales           Extent = "Wales"
	ExtentScotland        Extent = "Scotland"
	ExtentNorthernIreland Extent = "Northern Ireland"
	ExtentUnitedKingdom   Extent = "United Kingdom"
)

// extentCodes maps the compact portal codes to typed extents.
var extentCodes = map[string]Extent{
	"E":    ExtentEngland,
	"W":    ExtentWales,
	"S":    ExtentScotland,
	"N.I.": ExtentNorthernIreland,
	"NI":   ExtentNorthernIreland,
}

// ParseExtent maps a compact extent code such as "E+W+S+N.I." to the typed
// enumeration. The full combination collapses to United Kingdom.
func ParseExtent(code string) []Extent {
	if code == "" {
		return nil
	}
	var parts []Extent
	seen := make(map[Extent]bool)
	start := 0
	for i := 0; i <= len(code); i++ {
		if i == len(code) || code[i] == '+' {
			raw := trimSpace(code[start:i])
			start = i + 1
			if e, ok := extentCodes[raw]; ok && !seen[e] {
				seen[e] = true
				parts = append(parts, e)
			}
		}
	}
	if seen[ExtentEngland] && seen[ExtentWales] && seen[ExtentScotland] && seen[ExtentNorthernIreland] {
		return []Extent{ExtentUnitedKingdom}
	}
	return parts
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
