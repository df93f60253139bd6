package diag

// Subject locates a diagnostic inside the type graph.
type Subject struct {
	Type   string // fully qualified managed name
	Member string // field, method or property name; empty for the type itself
}

func (s Subject) String() string {
	if s.Member == "" {
		return s.Type
	}
	return s.Type + "::" + s.Member
}

type Note struct {
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Subject  Subject
	Notes    []Note
}

func New(sev Severity, code Code, subject Subject, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Subject:  subject,
		Message:  msg,
	}
}

func (d Diagnostic) WithNote(msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Msg: msg})
	return d
}
