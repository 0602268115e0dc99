package country

// nameToCode maps lowercase full English country names to their codes.  The
// table covers the countries commonly returned by the geolocation providers;
// two-letter inputs never reach it.  Keep it sorted by code.
var nameToCode = map[string]Code{
	"united arab emirates": "AE",
	"argentina":            "AR",
	"austria":              "AT",
	"australia":            "AU",
	"belgium":              "BE",
	"bulgaria":             "BG",
	"brazil":               "BR",
	"canada":               "CA",
	"switzerland":          "CH",
	"chile":                "CL",
	"china":                "CN",
	"colombia":             "CO",
	"costa rica":           "CR",
	"cyprus":               "CY",
	"czech republic":       "CZ",
	"czechia":              "CZ",
	"germany":              "DE",
	"denmark":              "DK",
	"ecuador":              "EC",
	"estonia":              "EE",
	"egypt":                "EG",
	"spain":                "ES",
	"finland":              "FI",
	"france":               "FR",
	"united kingdom":       "GB",
	"great britain":        "GB",
	"georgia":              "GE",
	"greece":               "GR",
	"hong kong":            "HK",
	"croatia":              "HR",
	"hungary":              "HU",
	"indonesia":            "ID",
	"ireland":              "IE",
	"israel":               "IL",
	"india":                "IN",
	"iceland":              "IS",
	"italy":                "IT",
	"japan":                "JP",
	"kenya":                "KE",
	"south korea":          "KR",
	"republic of korea":    "KR",
	"lithuania":            "LT",
	"luxembourg":           "LU",
	"latvia":               "LV",
	"morocco":              "MA",
	"moldova":              "MD",
	"mexico":               "MX",
	"malaysia":             "MY",
	"nigeria":              "NG",
	"netherlands":          "NL",
	"the netherlands":      "NL",
	"norway":               "NO",
	"new zealand":          "NZ",
	"peru":                 "PE",
	"philippines":          "PH",
	"poland":               "PL",
	"portugal":             "PT",
	"romania":              "RO",
	"serbia":               "RS",
	"russia":               "RU",
	"russian federation":   "RU",
	"saudi arabia":         "SA",
	"sweden":               "SE",
	"singapore":            "SG",
	"slovenia":             "SI",
	"slovakia":             "SK",
	"thailand":             "TH",
	"turkey":               "TR",
	"taiwan":               "TW",
	"ukraine":              "UA",
	"united states":        "US",
	"united states of america": "US",
	"uruguay":                  "UY",
	"vietnam":                  "VN",
	"south africa":             "ZA",
}
