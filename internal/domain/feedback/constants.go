package feedback

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusSubmitted
}

type Rating string

const (
	RatingBelow    Rating = "tracking_below"
	RatingExpected Rating = "tracking_expected"
	RatingAbove    Rating = "tracking_above"
)

var Ratings = []Rating{RatingBelow, RatingExpected, RatingAbove}

func (r Rating) Valid() bool {
	switch r {
	case RatingBelow, RatingExpected, RatingAbove:
		return true
	}
	return false
}

func (r Rating) Label() string {
	switch r {
	case RatingBelow:
		return "Tracking below"
	case RatingExpected:
		return "Tracking as expected"
	case RatingAbove:
		return "Tracking above"
	}
	return string(r)
}
