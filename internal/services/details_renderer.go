package services

import (
	"fmt"
	"regexp"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderDetails replaces {{key}} placeholders in the certificate details.
// Unknown keys are left as written.
func RenderDetails(template string, variables map[string]interface{}) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := variables[submatch[1]]; ok {
			return fmt.Sprint(value)
		}
		return match
	})
}

// detailVariables are the placeholders available to certificate details.
func detailVariables(p *models.Participant) map[string]interface{} {
	vars := map[string]interface{}{
		"name":            p.CompleteName(),
		"first_name":      p.FirstName,
		"last_name":       p.LastName,
		"validation_code": p.FormattedValidationCode(),
	}
	if p.Event != nil {
		vars["product_name"] = p.Event.ProductName
		vars["order_id"] = p.Event.OrderID
		if !p.Event.CheckinAt.IsZero() {
			vars["checkin_date"] = p.Event.CheckinAt.Format("02/01/2006")
		}
		if !p.Event.OrderDate.IsZero() {
			vars["order_date"] = p.Event.OrderDate.Format("02/01/2006")
		}
	}
	return vars
}
