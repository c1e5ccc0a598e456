package event

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func validPageview() map[string]any {
	return map[string]any{
		"type":              "pageview",
		"url":               "https://x.test/",
		"user_agent":        "UA",
		"page_load_time":    float64(1200),
		"screen_resolution": "1920x1080",
	}
}

func validEvent() map[string]any {
	return map[string]any{
		"type":           "event",
		"url":            "https://x.test/",
		"user_agent":     "UA",
		"event_name":     "click",
		"event_category": "interaction",
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	t.Parallel()

	for _, typ := range []any{"page_view", "", nil, float64(7), "PAGEVIEW"} {
		_, err := Validate(map[string]any{"type": typ, "url": "https://x.test/"})
		require.Error(t, err)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "Invalid event type", verr.Reason)
	}
}

func TestValidateListsMissingFieldsInOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{
			name: "event missing name",
			raw: map[string]any{
				"type":           "event",
				"url":            "https://x.test/",
				"user_agent":     "UA",
				"event_category": "interaction",
			},
			want: "Missing fields: event_name",
		},
		{
			name: "event missing everything but url",
			raw: map[string]any{
				"type": "event",
				"url":  "https://x.test/",
			},
			want: "Missing fields: user_agent, event_name, event_category",
		},
		{
			name: "pageview missing user agent",
			raw: map[string]any{
				"type": "pageview",
				"url":  "https://x.test/",
			},
			want: "Missing fields: user_agent",
		},
		{
			name: "empty string counts as missing",
			raw: map[string]any{
				"type":       "pageview-anon",
				"url":        "",
				"user_agent": "UA",
			},
			want: "Missing fields: url",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Validate(tc.raw)
			require.EqualError(t, err, tc.want)
		})
	}
}

func TestValidateRejectsOversizedURL(t *testing.T) {
	t.Parallel()

	raw := validPageview()
	raw["url"] = "https://x.test/" + strings.Repeat("a", MaxURLLen)
	_, err := Validate(raw)
	require.EqualError(t, err, "URL exceeds maximum length")
}

func TestValidateRejectsNonNumericLoadTime(t *testing.T) {
	t.Parallel()

	for _, bad := range []any{"1200", true, []any{1}, map[string]any{"ms": 1}} {
		raw := validPageview()
		raw["page_load_time"] = bad
		_, err := Validate(raw)
		require.EqualError(t, err, "Invalid page load time format")
	}
}

func TestValidateAcceptsPageview(t *testing.T) {
	t.Parallel()

	n, err := Validate(validPageview())
	require.NoError(t, err)
	require.Equal(t, TypePageview, n.Type)
	require.Equal(t, "https://x.test/", n.URL)
	require.Equal(t, "UA", n.UserAgent)
	require.NotNil(t, n.PageLoadTime)
	require.EqualValues(t, 1200, *n.PageLoadTime)
	require.NotNil(t, n.ScreenResolution)
	require.Equal(t, "1920x1080", *n.ScreenResolution)
}

func TestValidateZeroLoadTimeBecomesNil(t *testing.T) {
	t.Parallel()

	raw := validPageview()
	raw["page_load_time"] = float64(0)
	n, err := Validate(raw)
	require.NoError(t, err)
	require.Nil(t, n.PageLoadTime)
}

func TestValidateTruncatesFields(t *testing.T) {
	t.Parallel()

	raw := validEvent()
	raw["user_agent"] = strings.Repeat("u", MaxUserAgentLen+100)
	raw["event_name"] = strings.Repeat("n", MaxNameLen+1)
	raw["event_category"] = strings.Repeat("c", MaxNameLen+1)
	raw["event_label"] = strings.Repeat("x", 1000)

	n, err := Validate(raw)
	require.NoError(t, err)
	require.Len(t, n.UserAgent, MaxUserAgentLen)
	require.Len(t, n.EventName, MaxNameLen)
	require.Len(t, n.EventCategory, MaxNameLen)
	require.NotNil(t, n.EventLabel)
	require.Len(t, *n.EventLabel, MaxNameLen)
}

func TestValidateTruncationKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	raw := validEvent()
	// A two-byte character straddles the user_agent cap; the cut must land
	// on a rune boundary, not mid-sequence.
	raw["user_agent"] = strings.Repeat("a", MaxUserAgentLen-1) + "é"
	raw["event_label"] = strings.Repeat("б", MaxNameLen) // 2 bytes each

	n, err := Validate(raw)
	require.NoError(t, err)

	require.True(t, utf8.ValidString(n.UserAgent), "truncated user_agent must stay valid UTF-8")
	require.Len(t, n.UserAgent, MaxUserAgentLen-1)
	require.NotNil(t, n.EventLabel)
	require.True(t, utf8.ValidString(*n.EventLabel), "truncated event_label must stay valid UTF-8")
	require.LessOrEqual(t, len(*n.EventLabel), MaxNameLen)
	require.Equal(t, strings.Repeat("б", MaxNameLen/2), *n.EventLabel)
}

func TestValidatePayloadRules(t *testing.T) {
	t.Parallel()

	t.Run("valid payload is serialized", func(t *testing.T) {
		t.Parallel()

		raw := validEvent()
		raw["payload"] = map[string]any{"element_id": "cta", "element_type": "BUTTON"}
		n, err := Validate(raw)
		require.NoError(t, err)
		require.JSONEq(t, `{"element_id":"cta","element_type":"BUTTON"}`, string(n.Payload))
	})

	t.Run("oversized payload is rejected not truncated", func(t *testing.T) {
		t.Parallel()

		raw := validEvent()
		raw["payload"] = map[string]any{"blob": strings.Repeat("x", MaxPayloadBytes)}
		_, err := Validate(raw)
		require.EqualError(t, err, "Payload exceeds maximum size")
	})

	t.Run("scalar payload is rejected", func(t *testing.T) {
		t.Parallel()

		raw := validEvent()
		raw["payload"] = "not-structured"
		_, err := Validate(raw)
		require.EqualError(t, err, "Invalid payload format")
	})

	t.Run("absent payload is nil", func(t *testing.T) {
		t.Parallel()

		n, err := Validate(validEvent())
		require.NoError(t, err)
		require.Nil(t, n.Payload)
	})
}

func TestValidateAnonKeepsMinimalData(t *testing.T) {
	t.Parallel()

	n, err := Validate(map[string]any{
		"type":              "pageview-anon",
		"url":               "https://x.test/",
		"user_agent":        "UA",
		"page_load_time":    float64(900),
		"screen_resolution": "800x600",
	})
	require.NoError(t, err)
	require.Equal(t, TypePageviewAnon, n.Type)
	require.Nil(t, n.PageLoadTime)
	require.Nil(t, n.ScreenResolution)
}
