package fieldcase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnakeToCamel(t *testing.T) {
	cases := map[string]string{
		"invite_type":      "inviteType",
		"created_at":       "createdAt",
		"duration_seconds": "durationSeconds",
		"email":            "email",
		"id":               "id",
	}
	for in, want := range cases {
		require.Equal(t, want, SnakeToCamel(in))
	}
}

func TestCamelToSnake(t *testing.T) {
	cases := map[string]string{
		"inviteType":      "invite_type",
		"createdAt":       "created_at",
		"durationSeconds": "duration_seconds",
		"email":           "email",
	}
	for in, want := range cases {
		require.Equal(t, want, CamelToSnake(in))
	}
}

func TestToApplication_NestedRecordsAndArrays(t *testing.T) {
	record := map[string]interface{}{
		"invite_type": "admin",
		"expires_at":  "2026-01-01T00:00:00Z",
		"resource_id": nil,
		"items": []interface{}{
			map[string]interface{}{"video_url": "https://example.com/v.mp4"},
			map[string]interface{}{"sort_order": 3},
		},
	}

	got := ToApplication(record, InviteFields).(map[string]interface{})
	require.Equal(t, "admin", got["inviteType"])
	require.Contains(t, got, "expiresAt")
	require.Nil(t, got["resourceId"])

	items := got["items"].([]interface{})
	require.Equal(t, "https://example.com/v.mp4", items[0].(map[string]interface{})["videoUrl"])
	require.Equal(t, 3, items[1].(map[string]interface{})["sortOrder"])
}

func TestRoundTrip_AllEntityMaps(t *testing.T) {
	maps := []FieldMap{InviteFields, OTPFields, ProductFields, VideoFields, PlaylistFields}

	for _, m := range maps {
		record := make(map[string]interface{}, len(m))
		for storageKey := range m {
			record[storageKey] = storageKey + "-value"
		}

		roundTripped := ToStorage(ToApplication(record, m), m)
		require.Equal(t, record, roundTripped)
	}
}

func TestRoundTrip_UnmappedKeysUseGenericTransform(t *testing.T) {
	record := map[string]interface{}{
		"some_extra_field": 1,
		"nested": map[string]interface{}{
			"deep_key": true,
		},
	}

	app := ToApplication(record, InviteFields).(map[string]interface{})
	require.Contains(t, app, "someExtraField")
	require.Contains(t, app["nested"].(map[string]interface{}), "deepKey")

	require.Equal(t, record, ToStorage(app, InviteFields))
}

func TestConvert_EmptyAndNil(t *testing.T) {
	require.Equal(t, map[string]interface{}{}, ToApplication(map[string]interface{}{}, nil))
	require.Equal(t, []interface{}{}, ToApplication([]interface{}{}, nil))
	require.Nil(t, ToApplication(nil, InviteFields))
	require.Nil(t, ToStorage(nil, InviteFields))
	require.Equal(t, 42, ToApplication(42, InviteFields))
}
