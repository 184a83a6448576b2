package platform

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/roster"
)

// platformDateFormat is the datetime layout the platform returns on GETs.
const platformDateFormat = "Mon, 02 Jan 2006 15:04:05 MST"

// batchRecord is one entry of a batch submission: the payload plus the
// identity used to pair outcomes back to records.
type batchRecord struct {
	id      string
	payload map[string]any
}

func studentPayload(s *roster.Student) batchRecord {
	payload := map[string]any{
		"ImportUserId": s.UserID,
		"ImportOrgId":  strconv.Itoa(s.OrgID),
		"FirstName":    s.FirstName,
		"MiddleName":   s.MiddleName,
		"LastName":     s.LastName,
		"Email":        s.Email,
		"GradeLevel":   s.GradeLevel,
		"LoginId":      s.LoginID,
		"LoginPw":      s.LoginPw,
		"Role":         roster.RoleStudent,
	}
	if len(s.CoachEmails) > 0 {
		payload["CoachEmails"] = s.CoachEmails
	}
	return batchRecord{id: s.UserID, payload: payload}
}

func staffPayload(m *roster.StaffMember) batchRecord {
	email := m.Email
	if email == "" {
		email = "unassigned@example.invalid"
	}
	return batchRecord{id: m.UserID, payload: map[string]any{
		"ImportUserId": m.UserID,
		"ImportOrgId":  strconv.Itoa(m.OrgID),
		"FirstName":    m.FirstName,
		"MiddleName":   m.MiddleName,
		"LastName":     m.LastName,
		"Email":        email,
		"LoginId":      m.LoginID,
		"LoginPw":      m.LoginPw,
		"Role":         roster.RoleTeacher,
	}}
}

func classroomPayload(c *roster.Classroom) batchRecord {
	return batchRecord{id: strconv.Itoa(c.ClassroomID), payload: map[string]any{
		"ImportClassroomId":  strconv.Itoa(c.ClassroomID),
		"ImportOrgId":        strconv.Itoa(c.OrgID),
		"ImportUserId":       c.TeacherID,
		"ClassroomName":      c.Name,
		"ProductCodes":       c.ProductCodes,
		"ClassroomStartDate": c.StartDate.Format(roster.StartDateFormat),
		"ProgramCode":        c.ProgramCode,
		"Role":               roster.RoleTeacher,
	}}
}

// parseStudent converts one platform student object into a domain record.
// Identity fields are required; the organization comes from the first entry
// of the Organizations list, as students hold a single organization.
func parseStudent(obj gjson.Result) (*roster.Student, error) {
	userID := obj.Get("ImportUserId").String()
	if userID == "" {
		return nil, errors.NewIncompleteRecordError("student", "", "ImportUserId")
	}
	orgID := int(obj.Get("ImportOrgId").Int())
	if orgID == 0 {
		orgID = int(obj.Get("Organizations.0.ImportOrgId").Int())
	}

	var coaches []string
	for _, addr := range obj.Get("CoachEmails").Array() {
		if addr.String() != "" {
			coaches = append(coaches, addr.String())
		}
	}

	return &roster.Student{
		UserID:      userID,
		OrgID:       orgID,
		FirstName:   obj.Get("FirstName").String(),
		MiddleName:  obj.Get("MiddleName").String(),
		LastName:    obj.Get("LastName").String(),
		Email:       obj.Get("Email").String(),
		GradeLevel:  int(obj.Get("GradeLevel").Int()),
		LoginID:     obj.Get("LoginId").String(),
		CoachEmails: coaches,
	}, nil
}

// TeacherResolver maps a platform teacher display name ("First Last") and
// organization to a source-system teacher id. The classroom delegate injects
// a fuzzy matcher over the source staff snapshot.
type TeacherResolver func(displayName string, orgID int) (string, bool)

// parseClassroom converts one platform classroom object into a domain
// record. The platform reports the assigned teacher only as a display name,
// so the injected resolver recovers the teacher id.
func parseClassroom(obj gjson.Result, resolve TeacherResolver) (*roster.Classroom, error) {
	classroomID := int(obj.Get("ImportClassroomId").Int())
	if classroomID == 0 {
		return nil, errors.NewIncompleteRecordError("classroom", "", "ImportClassroomId")
	}
	orgID := int(obj.Get("ImportOrgId").Int())

	var codes []string
	for _, code := range obj.Get("ProductCodes").Array() {
		if code.String() != "" {
			codes = append(codes, code.String())
		}
	}

	var startDate time.Time
	if raw := obj.Get("ClassroomStartDate").String(); raw != "" {
		parsed, err := time.Parse(platformDateFormat, raw)
		if err != nil {
			parsed, err = time.Parse(roster.StartDateFormat, raw)
		}
		if err == nil {
			startDate = parsed
		}
	}

	teacherID := ""
	if resolve != nil {
		if id, ok := resolve(obj.Get("PrimaryTeacher").String(), orgID); ok {
			teacherID = id
		}
	}

	program, _ := roster.ProgramCode(orgID)
	return &roster.Classroom{
		ClassroomID:  classroomID,
		OrgID:        orgID,
		TeacherID:    teacherID,
		Name:         obj.Get("ClassroomName").String(),
		ProductCodes: codes,
		StartDate:    startDate,
		ProgramCode:  program,
	}, nil
}
