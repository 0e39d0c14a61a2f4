package sanitizer

const (
	MinPlaces = 0

	MaxPlaces = 100000
)

func NormalizePlaces(places int) int {
	if places < MinPlaces {
		return MinPlaces
	}
	if places > MaxPlaces {
		return MaxPlaces
	}
	return places
}
