package sqs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

func TestNewObjectCreatedBody_EncodesKeyLikeS3(t *testing.T) {
	body, err := NewObjectCreatedBody("interpreted-events-bucket", "networks/crossroads/job one/acct/2025-02-01/13/file.json")
	require.NoError(t, err)

	var notification domain.S3EventNotification
	require.NoError(t, json.Unmarshal(body, &notification))

	require.Len(t, notification.Records, 1)
	assert.Equal(t, "interpreted-events-bucket", notification.Records[0].S3.Bucket.Name)
	assert.Equal(t, "networks/crossroads/job+one/acct/2025-02-01/13/file.json", notification.Records[0].S3.Object.Key)
}

func TestEncodeKey_EscapesColons(t *testing.T) {
	assert.Equal(t, "a/2025-02-01T13%3A00%3A00.000Z.json", encodeKey("a/2025-02-01T13:00:00.000Z.json"))
}
