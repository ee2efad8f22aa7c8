package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

// Form field names
const (
	fieldAdmissionDate = "admission_date"
	fieldTab           = "tab"
	fieldUpload        = "file"
)

const formDateLayout = "2006-01-02"

// formReader pulls typed values out of a parsed form. Absent fields are
// collected so one error can name all of them; the first malformed value is
// kept as the parse error.
type formReader struct {
	r       *http.Request
	missing []string
	err     error
}

func newFormReader(r *http.Request) *formReader {
	return &formReader{r: r}
}

func (f *formReader) raw(name string) (string, bool) {
	v := strings.TrimSpace(f.r.PostFormValue(name))
	if v == "" {
		f.missing = append(f.missing, name)
		return "", false
	}
	return v, true
}

func (f *formReader) fail(name, want string) {
	if f.err == nil {
		f.err = apperrors.NewInvalidInputError(fmt.Sprintf("%s must be %s", name, want))
	}
}

func (f *formReader) intField(name string) int {
	v, ok := f.raw(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// range sliders may post "40.0"
		x, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || x != math.Trunc(x) || math.Abs(x) > math.MaxInt32 {
			f.fail(name, "a whole number")
			return 0
		}
		n = int(x)
	}
	return n
}

func (f *formReader) floatField(name string) float64 {
	v, ok := f.raw(name)
	if !ok {
		return 0
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		f.fail(name, "a number")
		return 0
	}
	return x
}

func (f *formReader) dateField(name string) time.Time {
	v, ok := f.raw(name)
	if !ok {
		return time.Time{}
	}
	d, err := time.Parse(formDateLayout, v)
	if err != nil {
		f.fail(name, "a date in YYYY-MM-DD form")
		return time.Time{}
	}
	return d
}

// Err reports absent fields first, then malformed values
func (f *formReader) Err() error {
	if len(f.missing) > 0 {
		return apperrors.NewSchemaMismatchError("form", f.missing)
	}
	return f.err
}

// parseClinicalForm reads the slider form. The returned input echoes whatever
// was parsed so the form can be re-rendered after an error.
func parseClinicalForm(r *http.Request) (entities.ClinicalInput, error) {
	f := newFormReader(r)
	in := entities.ClinicalInput{
		Age:                  f.intField(entities.FieldAge),
		Cost:                 f.intField(entities.FieldCost),
		BedOccupancy:         f.floatField(entities.FieldBedOccupancy),
		ICUOccupancy:         f.floatField(entities.FieldICUOccupancy),
		StaffWorkloadScore:   f.floatField(entities.FieldStaffWorkloadScore),
		RecentEmergencies24h: f.intField(entities.FieldRecentEmergencies24h),
		Hour:                 f.intField(entities.FieldHour),
		DayOfWeek:            f.intField(entities.FieldDayOfWeek),
	}
	return in, f.Err()
}

// parseLoadForm reads the date-based emergency load form
func parseLoadForm(r *http.Request) (entities.LoadInput, error) {
	f := newFormReader(r)
	in := entities.LoadInput{
		AdmissionDate:        f.dateField(fieldAdmissionDate),
		RecentEmergencies24h: f.intField(entities.FieldRecentEmergencies24h),
		BedOccupancy:         f.floatField(entities.FieldBedOccupancy),
		ICUOccupancy:         f.floatField(entities.FieldICUOccupancy),
	}
	return in, f.Err()
}
