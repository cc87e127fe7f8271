package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds provider credentials and webhook URLs. String and
// MarshalJSON return a placeholder so the value never reaches logs or
// serialized config dumps. Use Unmask when the raw value is needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty value is configured. Channel senders use
// this to decide between real delivery and the logged-only fallback.
func (s SecretString) IsSet() bool {
	return s != ""
}
