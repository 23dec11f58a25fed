package seeding

// Defaults applied by normalize.
const (
	DefaultStudents     = 30
	DefaultDays         = 20
	DefaultPresentRatio = 0.85
	DefaultWorkers      = 4
)

const (
	// Denominator for crypto/rand draws in generator.go.
	randomDenominator = 1_000_000

	directoryPermission = 0o750
	logFilePermission   = 0o600
)
