package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactEmailMasksLocalPart(t *testing.T) {
	require.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	require.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	require.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactSecretFullyMasksNonEmptyValue(t *testing.T) {
	require.Equal(t, "***", RedactSecret("sk-live-abc123"))
	require.Equal(t, "", RedactSecret(""))
}

func TestRedactFieldValueRoutesSecretMarkersToFullMask(t *testing.T) {
	require.Equal(t, "***", redactFieldValue("smtp_password", "hunter2"))
	require.Equal(t, "***", redactFieldValue("aws_access_key", "AKIA..."))
	require.Equal(t, "***", redactFieldValue("webhook_secret", "whsec_abc"))
}

func TestRedactFieldValueMasksEmailFields(t *testing.T) {
	require.Equal(t, "jo***@example.com", redactFieldValue("recipient_email", "john.doe@example.com"))
}
