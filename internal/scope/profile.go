package scope

// UserProfile is the subset of a user record the registry can expose.
type UserProfile struct {
	ID       string
	Name     string
	Email    string
	RollNo   string
	Branch   string
	Semester string
	Role     string
}

func (p UserProfile) value(f Field) string {
	switch f {
	case FieldID:
		return p.ID
	case FieldName:
		return p.Name
	case FieldEmail:
		return p.Email
	case FieldRollNo:
		return p.RollNo
	case FieldBranch:
		return p.Branch
	case FieldSemester:
		return p.Semester
	case FieldRole:
		return p.Role
	}
	return ""
}

// FilterProfile returns only the fields the granted scopes expose, plus the
// id as the minimal identifier. The name belongs to the profile scope.
func FilterProfile(p UserProfile, scopes []string) map[string]string {
	out := map[string]string{string(FieldID): p.ID}
	for _, s := range Normalize(scopes) {
		for _, f := range FieldsFor(Scope(s)) {
			out[string(f)] = p.value(f)
		}
	}
	return out
}
