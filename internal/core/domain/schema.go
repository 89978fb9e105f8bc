package domain

import "time"

// Academic credential schema constants. The attribute order is the order credentials are issued with.
const (
	AcademicSchemaName      = "AcademicCredential"
	AcademicSchemaVersion   = "1.0"
	AcademicDefinitionTag   = "academic"
	AcademicCredentialLabel = "Academic Credential"
)

// Academic attribute names
const (
	AttrStudentName    = "studentName"
	AttrStudentID      = "studentId"
	AttrDegree         = "degree"
	AttrGraduationDate = "graduationDate"
	AttrInstitution    = "institution"
	AttrCourses        = "courses"
	AttrGPA            = "gpa"
)

// AcademicAttributeNames returns the ordered attribute list of the academic schema
func AcademicAttributeNames() []string {
	return []string{
		AttrStudentName,
		AttrStudentID,
		AttrDegree,
		AttrGraduationDate,
		AttrInstitution,
		AttrCourses,
		AttrGPA,
	}
}

// CredentialDefinition binds a schema to the issuer issuance material on the agent.
// Immutable once created.
type CredentialDefinition struct {
	SchemaName             string    `json:"schemaName"`
	SchemaVersion          string    `json:"schemaVersion"`
	SchemaID               string    `json:"schemaId"`
	CredentialDefinitionID string    `json:"credentialDefinitionId"`
	Tag                    string    `json:"tag"`
	AttributeNames         []string  `json:"attributeNames"`
	CreatedAt              time.Time `json:"createdAt"`
}
