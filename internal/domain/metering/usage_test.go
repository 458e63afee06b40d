package metering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceKind(t *testing.T) {
	for _, kind := range AllResourceKinds() {
		parsed, err := ParseResourceKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
		assert.NotEmpty(t, parsed.DisplayName())
	}

	_, err := ParseResourceKind("bandwidth")
	assert.Error(t, err)
}

func TestUsageSnapshot_Value(t *testing.T) {
	snapshot := UsageSnapshot{
		StudentCount:       480,
		UserCount:          12,
		StorageBytes:       1024,
		APICallsLastMinute: 3,
		APICallsLastHour:   90,
		DatabaseSizeBytes:  2048,
	}

	assert.Equal(t, int64(480), snapshot.Value(ResourceStudents))
	assert.Equal(t, int64(12), snapshot.Value(ResourceUsers))
	assert.Equal(t, int64(1024), snapshot.Value(ResourceStorage))
	assert.Equal(t, int64(3), snapshot.Value(ResourceAPIRatePerMinute))
	assert.Equal(t, int64(90), snapshot.Value(ResourceAPIRatePerHour))
	assert.Equal(t, int64(2048), snapshot.Value(ResourceDatabaseSize))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.00 KB", FormatBytes(1024))
	assert.Equal(t, "2.50 MB", FormatBytes(2621440))
	assert.Equal(t, "1.00 GB", FormatBytes(1073741824))
	assert.Equal(t, "1.00 TB", FormatBytes(1099511627776))
}
