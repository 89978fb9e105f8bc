package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
)

const defaultGPA = "0.0"

// FormatAcademicAttributes returns the credential attributes of req in the schema order.
// Every value is a string: courses is a JSON array and gpa a decimal number with at least one decimal.
// A missing graduation date defaults to now, so formatting the same request twice may differ.
func FormatAcademicAttributes(req *ports.IssueRequest, now time.Time) ([]domain.CredentialAttribute, error) {
	courses := req.Courses
	if courses == nil {
		courses = []string{}
	}
	coursesJSON, err := json.Marshal(courses)
	if err != nil {
		return nil, err
	}

	graduationDate := now.UTC().Format(time.RFC3339)
	if req.GraduationDate != nil && *req.GraduationDate != "" {
		graduationDate = *req.GraduationDate
	}

	values := map[string]string{
		domain.AttrStudentName:    req.StudentName,
		domain.AttrStudentID:      req.StudentID,
		domain.AttrDegree:         req.Degree,
		domain.AttrGraduationDate: graduationDate,
		domain.AttrInstitution:    req.Institution,
		domain.AttrCourses:        string(coursesJSON),
		domain.AttrGPA:            formatGPA(req.GPA),
	}

	names := domain.AcademicAttributeNames()
	attrs := make([]domain.CredentialAttribute, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, domain.CredentialAttribute{Name: name, Value: values[name]})
	}
	return attrs, nil
}

func formatGPA(gpa *float64) string {
	if gpa == nil {
		return defaultGPA
	}
	s := strconv.FormatFloat(*gpa, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
