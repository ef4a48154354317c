package fitness

import "strings"

type idealFatBand struct {
	maxAge int
	male   int
	other  int
}

// ordered by maxAge; ages above the last band use idealFatOver65
var idealFatBands = []idealFatBand{
	{maxAge: 25, male: 15, other: 22},
	{maxAge: 35, male: 16, other: 24},
	{maxAge: 45, male: 17, other: 25},
	{maxAge: 55, male: 18, other: 27},
	{maxAge: 65, male: 19, other: 28},
}

var idealFatOver65 = idealFatBand{male: 20, other: 30}

func IsMale(gender string) bool {
	return strings.ToLower(gender) == "male"
}

// IdealFatPercentage returns the reference body fat percentage for the given age and gender.
// Any gender other than "male" (case-insensitive) uses the female track.
func IdealFatPercentage(age int, gender string) int {
	band := idealFatOver65
	for _, b := range idealFatBands {
		if age <= b.maxAge {
			band = b
			break
		}
	}
	if IsMale(gender) {
		return band.male
	}
	return band.other
}
