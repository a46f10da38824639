package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success   string
	Error     string
	Warning   string
	Info      string
	ArrowR    string
	Bullet    string
	Ellipsis  string
	Image     string
	Nutrition string
	User      string
	Bot       string
}

var unicodeSymbols = SymbolSet{
	Success:   "\u2713",     // ✓
	Error:     "\u2717",     // ✗
	Warning:   "\u26A0",     // ⚠
	Info:      "\u25CF",     // ●
	ArrowR:    "\u2192",     // →
	Bullet:    "\u2022",     // •
	Ellipsis:  "\u2026",     // …
	Image:     "\U0001F5BC", // 🖼
	Nutrition: "\U0001F957", // 🥗
	User:      "You",
	Bot:       "VirtualFit",
}

var asciiSymbols = SymbolSet{
	Success:   "[OK]",
	Error:     "[ERR]",
	Warning:   "[!]",
	Info:      "[i]",
	ArrowR:    "->",
	Bullet:    "*",
	Ellipsis:  "...",
	Image:     "[img]",
	Nutrition: "[food]",
	User:      "You",
	Bot:       "VirtualFit",
}

// asciiEnv forces the ASCII symbol set when set to 1 or true.
const asciiEnv = "VIRTUALFIT_ASCII_SYMBOLS"

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// VIRTUALFIT_ASCII_SYMBOLS wins over locale detection.
func DetectUnicodeSupport() bool {
	if v := os.Getenv(asciiEnv); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}

	// Most modern terminals support Unicode.
	return true
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called by init(), and again by tests that change the
// environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolImage = set.Image
	SymbolNutrition = set.Nutrition
	SymbolUser = set.User
	SymbolBot = set.Bot
}

func init() {
	InitSymbols()
}
