package tzdb

// windowsZones maps Windows time zone IDs, as found in TZID parameters of
// calendars exported by Outlook and Exchange, to IANA identifiers. It covers
// the primary territory of each zone in CLDR's windowsZones.xml.
var windowsZones = map[string]string{
	"Dateline Standard Time":         "Etc/GMT+12",
	"Hawaiian Standard Time":         "Pacific/Honolulu",
	"Alaskan Standard Time":          "America/Anchorage",
	"Pacific Standard Time":          "America/Los_Angeles",
	"US Mountain Standard Time":      "America/Phoenix",
	"Mountain Standard Time":         "America/Denver",
	"Central America Standard Time":  "America/Guatemala",
	"Central Standard Time":          "America/Chicago",
	"Canada Central Standard Time":   "America/Regina",
	"SA Pacific Standard Time":       "America/Bogota",
	"Eastern Standard Time":          "America/New_York",
	"US Eastern Standard Time":       "America/Indianapolis",
	"Atlantic Standard Time":         "America/Halifax",
	"Newfoundland Standard Time":     "America/St_Johns",
	"E. South America Standard Time": "America/Sao_Paulo",
	"Argentina Standard Time":        "America/Buenos_Aires",
	"GMT Standard Time":              "Europe/London",
	"Greenwich Standard Time":        "Atlantic/Reykjavik",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Romance Standard Time":          "Europe/Paris",
	"Central European Standard Time": "Europe/Warsaw",
	"GTB Standard Time":              "Europe/Bucharest",
	"FLE Standard Time":              "Europe/Kiev",
	"E. Europe Standard Time":        "Europe/Chisinau",
	"South Africa Standard Time":     "Africa/Johannesburg",
	"Israel Standard Time":           "Asia/Jerusalem",
	"Russian Standard Time":          "Europe/Moscow",
	"Turkey Standard Time":           "Europe/Istanbul",
	"Arabian Standard Time":          "Asia/Dubai",
	"Iran Standard Time":             "Asia/Tehran",
	"Pakistan Standard Time":         "Asia/Karachi",
	"India Standard Time":            "Asia/Calcutta",
	"Nepal Standard Time":            "Asia/Katmandu",
	"Bangladesh Standard Time":       "Asia/Dhaka",
	"SE Asia Standard Time":          "Asia/Bangkok",
	"China Standard Time":            "Asia/Shanghai",
	"Singapore Standard Time":        "Asia/Singapore",
	"Taipei Standard Time":           "Asia/Taipei",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"Korea Standard Time":            "Asia/Seoul",
	"Cen. Australia Standard Time":   "Australia/Adelaide",
	"AUS Central Standard Time":      "Australia/Darwin",
	"E. Australia Standard Time":     "Australia/Brisbane",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"Tasmania Standard Time":         "Australia/Hobart",
	"New Zealand Standard Time":      "Pacific/Auckland",
	"Tonga Standard Time":            "Pacific/Tongatapu",
}
