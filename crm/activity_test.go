package crm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivity_KindDiscriminator(t *testing.T) {
	at := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	activities := []Activity{
		Call{When: at, DurationSeconds: 240, Outcome: "left voicemail"},
		Email{When: at, Subject: "Your quote", Direction: "outbound"},
		Note{When: at, Body: "Prefers black fenders"},
		Quote{When: at, TrailerID: "TR-1042", AmountCents: 1249900, ValidUntil: at.Add(14 * 24 * time.Hour)},
	}
	for _, a := range activities {
		t.Run(string(a.Kind()), func(t *testing.T) {
			data, err := MarshalActivity(a)
			require.NoError(t, err)

			var head map[string]any
			require.NoError(t, json.Unmarshal(data, &head))
			assert.Equal(t, string(a.Kind()), head["kind"])

			back, err := UnmarshalActivity(data)
			require.NoError(t, err)
			assert.Equal(t, a, back)
		})
	}
}

func TestActivity_OnlyVariantFields(t *testing.T) {
	data, err := MarshalActivity(Note{Body: "x"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "subject")
	assert.NotContains(t, fields, "amountCents")
	assert.Contains(t, fields, "body")
}

func TestUnmarshalActivity_Rejects(t *testing.T) {
	_, err := UnmarshalActivity([]byte(`{"kind":"sms","body":"hi"}`))
	assert.ErrorIs(t, err, ErrUnknownActivity)

	_, err = UnmarshalActivity([]byte(`{"kind":"email","subject":"hi","direction":"sideways"}`))
	assert.ErrorIs(t, err, ErrInvalidActivity)

	_, err = UnmarshalActivity([]byte(`{"kind":"quote","trailerId":"T1","amountCents":0}`))
	assert.ErrorIs(t, err, ErrInvalidActivity)

	_, err = UnmarshalActivity([]byte(`not json`))
	assert.Error(t, err)
}

func TestActivityRecord_MarshalJSON(t *testing.T) {
	rec := ActivityRecord{ID: 7, CustomerID: 3, Activity: Note{Body: "called back"}}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, float64(7), fields["id"])
	assert.Equal(t, float64(3), fields["customerId"])
	assert.Equal(t, "note", fields["kind"])
	assert.Equal(t, "called back", fields["body"])
}

func TestCustomer_Validate(t *testing.T) {
	c := Customer{Name: "  Pat Doe ", Email: "pat@example.test"}
	require.NoError(t, c.Validate())
	assert.Equal(t, "Pat Doe", c.Name)
	assert.Equal(t, "new", c.Status)

	assert.ErrorIs(t, (&Customer{}).Validate(), ErrInvalidCustomer)
	assert.ErrorIs(t, (&Customer{Name: "x", Email: "nope"}).Validate(), ErrInvalidCustomer)
}

func TestSavedView_Filter(t *testing.T) {
	v := SavedView{Query: Encode(FilterState{Temperatures: []string{"hot"}}).Encode()}
	f, err := v.Filter()
	require.NoError(t, err)
	assert.Equal(t, []string{"hot"}, f.Temperatures)
}
