package webhook

import (
	"encoding/json"
	"strings"
)

// maskPayload replaces card and billing detail objects before a payload
// is logged or stored.
func maskPayload(raw []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	maskMap(obj)
	masked, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return masked
}

func maskedData(raw []byte) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return map[string]any{}
	}
	maskMap(obj)
	return obj
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "card", "billing_details", "billingdetails", "shipping_details", "payment_method_details", "paymentmethoddetails":
			m[k] = "***"
		default:
			switch nested := v.(type) {
			case map[string]any:
				maskMap(nested)
			case []any:
				for _, item := range nested {
					if itemMap, ok := item.(map[string]any); ok {
						maskMap(itemMap)
					}
				}
			}
		}
	}
}
