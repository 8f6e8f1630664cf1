package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// The word lists below are acknowledged heuristics carried over from
// the production rule table; they trade false positives against false
// negatives and should not be extended without product review.

// Keys ending in a classification suffix name an enum, not data —
// unless the key carries one of the sensitive code markers.
var classificationSuffixes = []string{
	"type", "method", "format", "style", "mode", "kind",
	"category", "class", "classification", "scheme", "strategy",
	"variant", "option", "choice", "selection",
}

var sensitiveCodeMarkers = []string{
	"zip", "postal", "area", "country", "region",
	"security", "verification", "access", "pin",
	"activation", "confirmation", "auth",
	"cvv", "cvc", "cid",
	"tax", "ssn", "national",
	"pass", "password", "otp", "mfa", "lock",
}

// A trailing "code" only marks a classification when the key carries
// business context (ratePlanCode, statusCode); a bare or ambiguous
// "code" ending may still be sensitive (zipCode, securityCode).
var businessCodeContext = []string{
	"plan", "rate", "product", "service", "status", "error", "result",
	"response", "transaction", "campaign", "promotion", "offer",
	"subscription", "billing", "invoice", "payment",
}

var booleanValues = map[string]struct{}{
	"true": {}, "false": {},
	"yes": {}, "no": {},
	"y": {}, "n": {},
	"1": {}, "0": {},
	"on": {}, "off": {},
	"enabled": {}, "disabled": {},
	"active": {}, "inactive": {},
	"valid": {}, "invalid": {},
}

var uuidPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`),
	regexp.MustCompile(`(?i)^[0-9a-f]{32}$`),
	regexp.MustCompile(`(?i)^\{[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\}$`),
}

var classificationIndicators = []string{
	"type", "kind", "category", "class", "classification", "method",
	"format", "style", "mode", "variant", "scheme", "strategy",
}

// Values that name a kind of data rather than carrying it.
var classificationValueNames = map[string]struct{}{
	"ssn": {}, "social": {}, "passport": {}, "license": {}, "driverlicense": {}, "nationalid": {},
	"credit": {}, "debit": {}, "visa": {}, "mastercard": {}, "amex": {}, "discover": {},
	"email": {}, "phone": {}, "mobile": {}, "home": {}, "work": {}, "business": {},
	"billing": {}, "shipping": {}, "mailing": {},
	"primary": {}, "secondary": {}, "temporary": {}, "permanent": {}, "preferred": {},
	"sms": {}, "call": {}, "mail": {}, "notification": {},
	"pdf": {}, "doc": {}, "image": {}, "text": {}, "json": {}, "xml": {},
}

var personalDateKeywords = []string{
	"dob", "dateofbirth", "birthdate", "birthday", "bday", "birth", "born",
}

// Name fields can contain date-looking words ("lastName"); they are
// never date fields.
var nameFieldIndicators = []string{
	"name", "firstname", "lastname", "fullname", "surname", "givenname",
	"familyname", "displayname", "username", "nickname",
}

var nonDateFieldIndicators = []string{
	"password", "pass", "auth", "token", "key", "secret", "code",
	"address", "street", "location", "coordinate", "phone", "email",
	"account", "balance", "amount", "payment", "card", "credit",
}

var businessDateIndicators = []string{
	"effective", "expiry", "expire", "expiration", "valid", "start", "end",
	"created", "updated", "modified", "changed", "next", "plan",
	"rate", "service", "activation", "deactivation", "suspension", "resume",
	"renewal", "billing", "cycle", "period", "due", "payment", "transaction",
	"system", "process", "schedule", "maintenance", "upgrade", "install",
	"login", "logout", "access", "session", "request", "response",
}

var datetimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{1,2}:\d{2}`),
}

var epochMillisPattern = regexp.MustCompile(`^\d{13}$`)
var epochMicrosPattern = regexp.MustCompile(`^\d{16,}$`)

// Fields whose names suggest device/payment identifiers keep their
// sensitivity even when values look like timestamps (a 13-digit
// account number is not an epoch).
var sensitiveNameIndicators = []string{
	"imei", "cardnumber", "creditcard", "debitcard", "cvv", "ssn", "social",
	"account", "card", "pan", "macaddress", "mac", "subscriber", "msisdn",
}

var sensitiveValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{15}$`),                                  // IMEI
	regexp.MustCompile(`^\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}$`),  // card number
	regexp.MustCompile(`^\d{3,4}$`),                                 // CVV
	regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`),                       // SSN
	regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`),      // MAC
	regexp.MustCompile(`^\d{10,20}$`),                               // long account number
}

// corroborationRules require the field name to back up a value match
// before the pattern counts; bare numeric/string coincidences are too
// common otherwise.
var corroborationRules = map[string]struct {
	indicators []string
	valueShape *regexp.Regexp
}{
	"cvv": {
		indicators: []string{"cvv", "cvc", "cvn", "cid", "security", "verification"},
		valueShape: regexp.MustCompile(`^\d{3,4}$`),
	},
	"phone": {
		indicators: []string{"phone", "tel", "mobile", "cell", "msisdn", "number"},
		valueShape: regexp.MustCompile(`^[+]?[\d\s\-()]{7,15}$`),
	},
	"currency": {
		indicators: []string{"amount", "balance", "cost", "price", "fee", "charge", "payment", "bill"},
		valueShape: regexp.MustCompile(`^\$?\d+(\.\d{1,2})?$`),
	},
	"credit_card": {
		indicators: []string{"card", "credit", "debit", "pan", "account"},
	},
	"email": {
		indicators: []string{"email", "mail", "contact"},
	},
}

// splitTokens breaks a field key into lowercase tokens on camelCase,
// snake_case, digit, and acronym boundaries (HTTPStatusCode splits to
// http, status, code).
func splitTokens(key string) []string {
	var tokens []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(key)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsDigit(r):
			if len(cur) > 0 && !unicode.IsDigit(cur[len(cur)-1]) {
				flush()
			}
			cur = append(cur, r)
		case unicode.IsUpper(r):
			if len(cur) > 0 {
				prev := cur[len(cur)-1]
				acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
					flush()
				}
			}
			cur = append(cur, r)
		default:
			if len(cur) > 0 && unicode.IsDigit(cur[len(cur)-1]) {
				flush()
			}
			cur = append(cur, r)
		}
	}
	flush()

	return tokens
}

func hasClassificationSuffix(key string) bool {
	for _, marker := range sensitiveCodeMarkers {
		if strings.Contains(key, marker) {
			return false
		}
	}

	if strings.HasSuffix(key, "code") {
		for _, context := range businessCodeContext {
			if strings.Contains(key, context) {
				return true
			}
		}
		return false
	}

	for _, suffix := range classificationSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

func isBooleanValues(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, ok := booleanValues[strings.ToLower(strings.TrimSpace(v))]; !ok {
			return false
		}
	}
	return true
}

func isUUIDValues(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if !matchesAny(uuidPatterns, strings.TrimSpace(v)) {
			return false
		}
	}
	return true
}

// isClassificationValues reports whether a type-suffixed field holds
// only data-type names (values like "visa" or "email" describe a kind
// of data, they are not the data).
func isClassificationValues(key string, values []string) bool {
	if len(values) == 0 {
		return false
	}

	indicated := false
	for _, indicator := range classificationIndicators {
		if strings.Contains(key, indicator) {
			indicated = true
			break
		}
	}
	if !indicated {
		return false
	}

	for _, v := range values {
		if _, ok := classificationValueNames[strings.ToLower(strings.TrimSpace(v))]; !ok {
			return false
		}
	}
	return true
}

func isPersonalDateKey(key string) bool {
	for _, keyword := range personalDateKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isBusinessDateKey requires both a business-date indicator and an
// explicit date word, after ruling out name-like and clearly non-date
// keys.
func isBusinessDateKey(key string) bool {
	for _, indicator := range nameFieldIndicators {
		if strings.Contains(key, indicator) {
			return false
		}
	}
	for _, indicator := range nonDateFieldIndicators {
		if strings.Contains(key, indicator) {
			return false
		}
	}

	hasIndicator := false
	for _, indicator := range businessDateIndicators {
		if strings.Contains(key, indicator) {
			hasIndicator = true
			break
		}
	}
	if !hasIndicator {
		return false
	}

	return strings.Contains(key, "date") || strings.Contains(key, "time") || strings.Contains(key, "timestamp")
}

// hasDateTimeValues detects timestamps with a time component, or epoch
// values in the plausible millisecond/microsecond range.
func hasDateTimeValues(values []string) bool {
	for i, v := range values {
		if i >= 3 {
			break
		}
		v = strings.TrimSpace(v)

		if matchesAny(datetimePatterns, v) {
			return true
		}

		if epochMicrosPattern.MatchString(v) {
			return true
		}
		if epochMillisPattern.MatchString(v) {
			// 2020-01-01 .. 2030-12-31 in milliseconds
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil &&
				ts >= 1577836800000 && ts <= 1924991999999 {
				return true
			}
		}
	}
	return false
}

func isSensitiveNameField(key string, values []string) bool {
	indicated := false
	for _, indicator := range sensitiveNameIndicators {
		if strings.Contains(key, indicator) {
			indicated = true
			break
		}
	}
	if !indicated {
		return false
	}

	for i, v := range values {
		if i >= 3 {
			break
		}
		if matchesAny(sensitiveValuePatterns, strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func corroborated(patternName, key, value string) bool {
	rule, needsContext := corroborationRules[patternName]
	if !needsContext {
		return true
	}

	indicated := false
	for _, indicator := range rule.indicators {
		if strings.Contains(key, indicator) {
			indicated = true
			break
		}
	}
	if !indicated {
		return false
	}

	if rule.valueShape != nil && !rule.valueShape.MatchString(value) {
		return false
	}
	return true
}

// fuzzyNormalize resolves abbreviated field names to their canonical
// form: direct table lookup, camelCase compound heuristics, then
// vowel-stripped lookup.
func (c *Classifier) fuzzyNormalize(finalKey string) string {
	key := strings.ToLower(finalKey)

	if canonical, ok := c.rules.FuzzyRules[key]; ok {
		return canonical
	}

	// camelCase compounds
	if strings.ToLower(finalKey) != finalKey {
		tokens := splitTokens(finalKey)
		for _, token := range tokens {
			if (token == "date" || token == "birth" || token == "born") && isPersonalDateKey(key) {
				return "dateofbirth"
			}
			if (token == "first" || token == "last") && strings.Contains(key, "name") {
				return "name"
			}
		}
	}

	// Vowel removal matching
	consonants := strings.Map(func(r rune) rune {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			return -1
		}
		return r
	}, key)

	vowelMappings := map[string]string{
		"nm":  "name",
		"phn": "phone",
		"ml":  "email",
		"ddr": "address",
	}
	if canonical, ok := vowelMappings[consonants]; ok {
		return canonical
	}

	return key
}

func matchesAny(res []*regexp.Regexp, v string) bool {
	for _, re := range res {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}
