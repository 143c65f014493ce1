package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "visitor read", role: RoleVisitor, action: ActionRead, allow: true},
		{name: "visitor post", role: RoleVisitor, action: ActionPost, allow: true},
		{name: "visitor like", role: RoleVisitor, action: ActionLike, allow: true},
		{name: "visitor notifications", role: RoleVisitor, action: ActionManageNotifications, allow: false},
		{name: "visitor moderate", role: RoleVisitor, action: ActionModerate, allow: false},
		{name: "member comment", role: RoleMember, action: ActionComment, allow: true},
		{name: "member account", role: RoleMember, action: ActionManageAccount, allow: true},
		{name: "member themes", role: RoleMember, action: ActionManageThemes, allow: false},
		{name: "member admin", role: RoleMember, action: ActionAdmin, allow: false},
		{name: "admin moderate", role: RoleAdmin, action: ActionModerate, allow: true},
		{name: "admin events", role: RoleAdmin, action: ActionManageEvents, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]Role{
		"":        RoleVisitor,
		"member":  RoleMember,
		"admin":   RoleAdmin,
		"editor":  RoleMember,
		"visitor": RoleMember,
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("admin") || !Valid("member") {
		t.Fatal("expected account roles to be valid")
	}
	if Valid("visitor") || Valid("") {
		t.Fatal("visitor is not an assignable role")
	}
}
