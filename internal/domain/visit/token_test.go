package visit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeptPrefix(t *testing.T) {
	assert.Equal(t, "ER", DeptPrefix("Emergency"))
	assert.Equal(t, "ER", DeptPrefix(" emergency "))
	assert.Equal(t, "CA", DeptPrefix("Cardiology"))
	assert.Equal(t, "GE", DeptPrefix("general medicine"))
	assert.Equal(t, "E", DeptPrefix("e"))
}

func TestDoctorCode(t *testing.T) {
	assert.Equal(t, "IY", DoctorCode("Dr. Priya Iyer"))
	assert.Equal(t, "RA", DoctorCode("rao"))
	assert.Equal(t, "GN", DoctorCode(""))
	assert.Equal(t, "GN", DoctorCode("   "))
}

func TestFormatToken(t *testing.T) {
	assert.Equal(t, "CA-IY-007", FormatToken("Cardiology", "Dr. Priya Iyer", 7))
	assert.Equal(t, "ER-GN-120", FormatToken("Emergency", "", 120))
	assert.Equal(t, "PE-GN-1000", FormatToken("Pediatrics", "", 1000))
}

func TestFormatVisitNumber(t *testing.T) {
	day := time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "CA20260314-0012", FormatVisitNumber("Cardiology", day, 12))
}
