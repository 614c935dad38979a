package visit

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DeptPrefix is "ER" for the emergency department and otherwise the first two
// letters of the department name, upper-cased.
func DeptPrefix(department string) string {
	d := strings.TrimSpace(department)
	if strings.EqualFold(d, "emergency") {
		return "ER"
	}
	return strings.ToUpper(firstRunes(strings.ReplaceAll(d, " ", ""), 2))
}

// DoctorCode is the first two letters of the doctor's surname, or "GN" when
// no doctor is assigned.
func DoctorCode(doctorName string) string {
	fields := strings.Fields(doctorName)
	if len(fields) == 0 {
		return "GN"
	}
	return strings.ToUpper(firstRunes(fields[len(fields)-1], 2))
}

// FormatToken renders a queue token such as "CA-IY-007".
func FormatToken(department, doctorName string, n int64) string {
	return fmt.Sprintf("%s-%s-%03d", DeptPrefix(department), DoctorCode(doctorName), n)
}

// FormatVisitNumber renders a visit number such as "CA20260314-0012".
func FormatVisitNumber(department string, day time.Time, n int64) string {
	return fmt.Sprintf("%s%s-%04d", DeptPrefix(department), day.Format("20060102"), n)
}

func departmentKey(department string) string {
	return strings.ToLower(strings.TrimSpace(department))
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
