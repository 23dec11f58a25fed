package seeding

import (
	"crypto/rand"
	"math/big"

	"github.com/okian/rollcall/internal/domain/model"
)

var (
	givenNames = []string{ //nolint:gochecknoglobals // fixed name pool
		"Aarav", "Bea", "Chidi", "Dana", "Emil", "Farah", "Goran", "Hana",
		"Ivo", "Jia", "Kofi", "Lena", "Mateo", "Nia", "Omar", "Priya",
		"Quinn", "Rosa", "Sven", "Tara", "Umar", "Vera", "Wen", "Yara",
	}
	familyNames = []string{ //nolint:gochecknoglobals // fixed name pool
		"Adeyemi", "Bauer", "Costa", "Dubois", "Eriksen", "Fischer", "Garcia",
		"Haddad", "Ito", "Jensen", "Kowalski", "Larsen", "Moreau", "Novak",
	}
)

// randomFloat returns a float64 in [0, 1) using crypto/rand.
func randomFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(randomDenominator))
	if err != nil {
		return 0
	}
	return float64(n.Int64()) / randomDenominator
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// studentName returns a name that passes roster validation.
func studentName() string {
	return givenNames[randomIndex(len(givenNames))] + " " + familyNames[randomIndex(len(familyNames))]
}

// randomStatus draws present with probability presentRatio.
func randomStatus(presentRatio float64) model.Status {
	if randomFloat() < presentRatio {
		return model.StatusPresent
	}
	return model.StatusAbsent
}

// generateDay marks every roster student for date.
func generateDay(roster []model.Student, date model.Date, presentRatio float64) []model.Record {
	records := make([]model.Record, len(roster))
	for i, st := range roster {
		records[i] = model.Record{StudentID: st.ID, Date: date, Status: randomStatus(presentRatio)}
	}
	return records
}

// pastDays returns the days days before today, oldest first.
func pastDays(today model.Date, days int) []model.Date {
	out := make([]model.Date, 0, days)
	for i := days; i >= 1; i-- {
		out = append(out, today.AddDays(-i))
	}
	return out
}
