package domain

// SubjectType differentiates citizen vs employee identities.
type SubjectType string

const (
	SubjectTypeCitizen  SubjectType = "CITIZEN"
	SubjectTypeEmployee SubjectType = "EMPLOYEE"
)

// Identity is implemented by every authenticated principal a session can hold.
type Identity interface {
	SubjectID() string
	SubjectType() SubjectType
}

// Route names a screen the presentation layer can navigate to.
type Route string

const (
	RouteCitizenLogin Route = "/(tabs)"
	RouteCitizenHome  Route = "/user/home"
	RouteAdminLogin   Route = "/admin/login"
	RouteAdminHome    Route = "/admin"
)
