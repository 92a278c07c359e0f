package collaborators

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// ruleChecker scores identities against a fixed rule set. Scores
// accumulate per indicator and clamp to 1.0.
type ruleChecker struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewRuleChecker creates the rule-based fraud checker.
func NewRuleChecker(logger *slog.Logger) FraudChecker {
	return &ruleChecker{
		logger: logger.With("collaborator", "fraud"),
		now:    time.Now,
	}
}

const dateLayout = "2006-01-02"

func (c *ruleChecker) Check(ctx context.Context, identity Identity, match *MatchResult) (*RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		indicators []Indicator
		score      float64
	)
	today := c.now().UTC()

	add := func(kind, severity, message string, weight float64) {
		indicators = append(indicators, Indicator{Type: kind, Severity: severity, Message: message})
		score += weight
	}

	if identity.ExpiryDate != "" {
		expiry, err := time.Parse(dateLayout, identity.ExpiryDate)
		if err != nil {
			add("invalid_date_format", "medium", "invalid expiry date format", 0.2)
		} else if expiry.Before(today) {
			add("expired_document", "high", "document expired on "+identity.ExpiryDate, 0.4)
		}
	}

	if identity.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, identity.DateOfBirth)
		if err != nil {
			add("invalid_dob_format", "medium", "invalid date of birth format", 0.2)
		} else {
			age := int(today.Sub(dob).Hours() / 24 / 365)
			if age < 18 {
				add("underage", "critical", "applicant is under 18", 0.5)
			} else if age > 100 {
				add("suspicious_age", "high", "applicant age is unusually high", 0.3)
			}
		}
	}

	if identity.Confidence > 0 {
		if identity.Confidence < 0.5 {
			add("low_ocr_confidence", "high", "extraction confidence is low", 0.3)
		} else if identity.Confidence < 0.7 {
			add("medium_ocr_confidence", "medium", "extraction confidence is medium", 0.1)
		}
	}

	if match != nil && !match.Verified {
		switch match.Status {
		case MatchNotFound:
			add("document_not_in_registry", "high", "document not found in government registry", 0.4)
		case MatchFlagged:
			add("registry_flagged", "critical", "document is flagged in government registry", 0.6)
		case MatchMismatch:
			add("data_mismatch", "high", "data does not match government records", 0.4)
		case MatchInvalid:
			add("invalid_document", "critical", "document marked invalid in government records", 0.5)
		}
	}

	switch identity.DocumentType {
	case DocumentTypeIDCard:
		if !strings.HasPrefix(identity.DocumentNumber, "ID-") {
			add("suspicious_document_number", "low", "id card number does not follow expected pattern", 0.1)
		}
	case DocumentTypePassport:
		if !strings.HasPrefix(identity.DocumentNumber, "PASS-") {
			add("suspicious_document_number", "low", "passport number does not follow expected pattern", 0.1)
		}
	}

	if suspiciousName(identity.FirstName) {
		add("suspicious_name", "medium", "first name appears suspicious", 0.2)
	}
	if suspiciousName(identity.LastName) {
		add("suspicious_name", "medium", "last name appears suspicious", 0.2)
	}

	if score > 1.0 {
		score = 1.0
	}

	level := RiskLow
	switch {
	case score >= 0.7:
		level = RiskCritical
	case score >= 0.4:
		level = RiskHigh
	case score >= 0.2:
		level = RiskMedium
	}

	if indicators == nil {
		indicators = []Indicator{}
	}

	assessment := &RiskAssessment{
		Score:         score,
		Level:         level,
		FraudDetected: level == RiskHigh || level == RiskCritical,
		Indicators:    indicators,
	}

	c.logger.Debug("fraud check complete",
		"score", score,
		"level", level,
		"indicators", len(indicators))

	return assessment, nil
}

func suspiciousName(name string) bool {
	if name == "" {
		return false
	}
	if len(name) < 2 {
		return true
	}
	for _, r := range name {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
