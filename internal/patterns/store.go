package patterns

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fieldguard/fieldguard/internal/logger"
	"go.uber.org/zap"
)

// Load reads the pattern store from disk. A missing file is created
// from the built-in defaults and loaded again; malformed JSON is fatal.
func Load(path string, log *logger.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Warn("Pattern file not found, creating defaults", zap.String("path", path))
		if err := Save(Default(), path); err != nil {
			return nil, fmt.Errorf("failed to create default pattern file: %w", err)
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pattern file after creating defaults: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pattern file %s: %w", path, err)
	}

	log.Info("Loaded pattern store",
		zap.String("path", path),
		zap.Int("keyword_categories", len(cfg.Keywords)),
		zap.Int("value_patterns", len(cfg.ValuePatterns)),
		zap.Int("manual_blacklist", len(cfg.DeveloperOverrides.ManualBlacklist)),
		zap.Int("manual_whitelist", len(cfg.DeveloperOverrides.ManualWhitelist)),
	)

	return cfg, nil
}

// Save writes the pattern store back to disk with 2-space indentation
// so the file stays hand-editable.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pattern store: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pattern file: %w", err)
	}
	return nil
}

// Backup copies the pattern file to a timestamped sibling and returns
// the backup path.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read pattern file for backup: %w", err)
	}
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	return backupPath, nil
}

// Default returns the built-in pattern store. Keyword lists use the
// specific compound forms (accountnumber, birthdate) rather than bare
// generic terms so that token matching does not flag fields like
// accountAge; tune them in the generated patterns_config.json.
func Default() *Config {
	return &Config{
		Keywords: map[string][]string{
			"spi": {
				"name", "nm", "fname", "lname", "fnme", "lstnm", "firstname", "lastname",
				"fullname", "surname", "givenname", "familyname", "username", "uname",
				"usrnm", "displayname", "nickname", "alias",
				"email", "eml", "emailaddr", "emailaddress", "mail", "mailaddr",
				"contactemail", "emailid", "userid", "user_email", "e_mail",
				"phone", "phne", "phn", "tel", "telephone", "mobile", "mob",
				"cellular", "msisdn", "contactno", "contactnumber", "phoneno", "phonenumber",
				"tel_no", "telephone_no",
				"address", "addr", "street", "city", "state",
				"zip", "zipcode", "postal", "postalcode",
				"ssn", "social", "socialsecurity", "taxid", "nationalid", "passport",
				"driverlicense", "citizenid", "personid", "identityno", "identification",
				"dob", "dateofbirth", "birthdate", "birthday", "bday", "birth",
				"birth_date", "date_of_birth",
				"subscriber", "customer", "cust", "personal", "individual", "person",
				"profile", "identity", "private",
			},
			"cpni": {
				"call", "cll", "sms", "message", "msg", "communication", "comm",
				"conversation", "chat", "voice",
				"usage", "consumed", "traffic", "bandwidth", "throughput",
				"network", "tower", "antenna", "signal", "coverage",
				"bearer",
				"position", "coordinates", "coord", "lat", "lng",
				"latitude", "longitude", "gps", "geolocation",
				"subscription", "activation", "provision",
				"imsi", "imei", "mcc", "mnc", "lac", "cgi", "cellid", "networkid",
				"operatorid", "carrier",
			},
			"rpi": {
				"payment", "billing", "invoice", "charge", "fee",
				"price", "amount", "amt",
				"balance", "bal", "credit", "debit", "financial",
				"finance", "revenue", "income",
				"transaction", "purchase", "receipt",
				"payment_id", "transaction_id",
				"accountnumber", "accountno", "acct", "acctno",
				"creditcard", "debitcard", "cardno", "cardnumber", "cardholder",
			},
			"cso": {
				"ticket", "complaint", "feedback",
				"remark", "employee", "emp", "staff", "operator",
				"audit",
			},
			"pci": {
				"creditcard", "debitcard", "pan", "cardnumber", "cardno",
				"ccnumber", "accountnumber",
				"cvv", "cvc", "cvn", "cid", "securitycode", "verificationcode", "checkcode",
				"expiry", "expire", "expiration", "expirydate", "validthru",
				"cardholder", "holdername",
			},
		},
		ValuePatterns: map[string]string{
			"email":           `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`,
			"phone":           `^\+?[1-9]\d{1,14}$|^\(\d{3}\)\s?\d{3}-\d{4}$|^\d{10,15}$`,
			"credit_card":     `^\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}$`,
			"ssn":             `^\d{3}-\d{2}-\d{4}$|^\d{9}$`,
			"date_standard":   `^\d{4}-\d{2}-\d{2}$|^\d{2}/\d{2}/\d{4}$`,
			"date_text":       `^(?i:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2}\s+\d{4}$`,
			"date_compact":    `^\d{8}$|^\d{6}$`,
			"coordinates":     `^-?\d+\.?\d*,-?\d+\.?\d*$`,
			"currency":        `^\$?\d+\.?\d{0,2}$`,
			"imei":            `^\d{15}$`,
			"cvv":             `^\d{3,4}$`,
			"ip":              `^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`,
			"name_pattern":    `^[A-Z][a-z]+ [A-Z][a-z]+$`,
			"long_numeric_id": `^\d{6,20}$`,
			"alphanumeric_id": `^[A-Z0-9]{6,20}$`,
		},
		FuzzyRules: map[string]string{
			"fnme":  "firstname",
			"lstnm": "lastname",
			"nm":    "name",
			"phne":  "phone",
			"eml":   "email",
			"addr":  "address",
			"usr":   "user",
			"cst":   "customer",
			"sub":   "subscriber",
			"no":    "number",
			"num":   "number",
			"id":    "identifier",
			"ref":   "reference",
			"amt":   "amount",
			"bal":   "balance",
			"acct":  "accountnumber",
			"pymt":  "payment",
			"tel":   "telephone",
			"mob":   "mobile",
			"loc":   "location",
			"coord": "coordinates",
		},
		Exclusions: []string{
			"status", "code", "type", "version", "timestamp", "method", "protocol",
			"format", "encoding", "charset", "limit", "offset", "page", "size",
			"count", "total", "success", "error", "message", "description",
			"content-type", "user-agent", "accept", "host", "connection", "cache-control",
			"length", "max", "min", "uuid", "guid", "hash", "checksum", "signature",
			"result", "response", "request", "verified", "preferred", "enabled", "disabled",
			"active", "inactive", "valid", "invalid", "tenuretype", "tenure", "tier",
			"autopay", "autodebit", "paperless", "billcycle", "billlanguage", "language",
			"locale", "timezone", "currency", "region", "country",
			"subtype", "subclass", "subcategory", "subgroup", "sublevel",
		},
		PatternMappings: map[string][]string{
			"email":           {"SPI"},
			"phone":           {"SPI"},
			"credit_card":     {"RPI", "PCI"},
			"ssn":             {"SPI"},
			"date_standard":   {"SPI"},
			"date_text":       {"SPI"},
			"date_compact":    {"SPI"},
			"coordinates":     {"CPNI"},
			"currency":        {"RPI"},
			"imei":            {"CPNI"},
			"cvv":             {"PCI"},
			"ip":              {"CSO"},
			"name_pattern":    {"SPI"},
			"long_numeric_id": {"CONTEXTUAL"},
			"alphanumeric_id": {"CONTEXTUAL"},
		},
		ValueExclusions: []string{
			"true", "false", "null", "undefined", "yes", "no", "on", "off",
			"enabled", "disabled", "active", "inactive", "valid", "invalid",
			"success", "failure", "ok", "error", "pending", "completed",
			"mature", "new", "old", "current", "expired", "draft", "final",
			"high", "medium", "low", "basic", "premium", "standard", "advanced",
			"public", "private", "internal", "external", "open", "closed",
			"available", "unavailable", "online", "offline", "ready", "busy",
		},
		BusinessValuePatterns: []string{
			`^(MATURE|NEW|OLD|CURRENT|EXPIRED|DRAFT|FINAL)$`,
			`^(HIGH|MEDIUM|LOW|BASIC|PREMIUM|STANDARD|ADVANCED)$`,
			`^(PUBLIC|PRIVATE|INTERNAL|EXTERNAL|OPEN|CLOSED)$`,
			`^(AVAILABLE|UNAVAILABLE|ONLINE|OFFLINE|READY|BUSY)$`,
			`^(ACTIVE|INACTIVE|ENABLED|DISABLED|VALID|INVALID)$`,
			`^(SUCCESS|FAILURE|OK|ERROR|PENDING|COMPLETED)$`,
		},
		DeveloperOverrides: Overrides{
			ManualBlacklist: []string{},
			ManualWhitelist: []string{},
		},
	}
}
