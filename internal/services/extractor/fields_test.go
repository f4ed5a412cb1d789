package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailHTML = `<html><body>
<div role="feed"><a href="https://www.google.com/maps/place/a">A</a></div>
<div class="pane">
  <h1> Joe's Plumbing </h1>
  <div role="img" aria-label="4.6 stars "></div>
  <button jsaction="pane.reviews.open"><span>(1,284)</span></button>
  <button data-item-id="address"><div aria-label="Address: 12 Main St, New York, NY 10001">12 Main St</div></button>
  <button data-item-id="phone:tel:+12125550100"><div aria-label="Phone: (212) 555-0100">(212) 555-0100</div></button>
  <a data-item-id="authority" href="https://joesplumbing.example.com/">joesplumbing.example.com</a>
</div>
</body></html>`

func TestParseDetail_AllFields(t *testing.T) {
	l := ParseDetail(detailHTML)

	require.NotNil(t, l.Name)
	assert.Equal(t, "Joe's Plumbing", *l.Name)
	require.NotNil(t, l.Address)
	assert.Equal(t, "12 Main St, New York, NY 10001", *l.Address)
	require.NotNil(t, l.Phone)
	assert.Equal(t, "(212) 555-0100", *l.Phone)
	require.NotNil(t, l.Website)
	assert.Equal(t, "https://joesplumbing.example.com/", *l.Website)
	require.NotNil(t, l.Rating)
	assert.InDelta(t, 4.6, *l.Rating, 1e-9)
	require.NotNil(t, l.ReviewsCount)
	assert.Equal(t, 1284, *l.ReviewsCount)

	assert.Nil(t, l.Category)
	assert.Nil(t, l.Lat)
	assert.Nil(t, l.Lng)
}

func TestParseDetail_MissingFieldsStayNil(t *testing.T) {
	l := ParseDetail(`<html><body><h1>Only A Name</h1><div role="img" aria-label="no rating yet"></div></body></html>`)

	require.NotNil(t, l.Name)
	assert.Equal(t, "Only A Name", *l.Name)
	assert.Nil(t, l.Address)
	assert.Nil(t, l.Phone)
	assert.Nil(t, l.Website)
	assert.Nil(t, l.Rating)
	assert.Nil(t, l.ReviewsCount)
}

func TestParseDetail_Garbage(t *testing.T) {
	l := ParseDetail("")
	assert.Nil(t, l.Name)
	assert.Nil(t, l.Rating)
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		label string
		want  *float64
	}{
		{"4.5 stars", ptr(4.5)},
		{"Rated 3 stars out of 5", ptr(3.0)},
		{"0 stars", ptr(0.0)},
		{"7.2 stars", nil},
		{"stars", nil},
		{". stars", nil},
		{"4.5 étoiles", nil},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := ParseRating(tt.label)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	assert.Equal(t, 1234, *ParseReviewCount("(1,234)"))
	assert.Equal(t, 0, *ParseReviewCount("0 reviews"))
	assert.Nil(t, ParseReviewCount("No reviews"))
	assert.Nil(t, ParseReviewCount(""))
}

func ptr[T any](v T) *T { return &v }
