package consts

const (
	PostStatusNormal  = "normal"
	PostStatusDeleted = "deleted"
)

const (
	RoleAdmin = "ADMIN"
)

const (
	BootstrapModeFill    = "fill"
	BootstrapModeRebuild = "rebuild"
)
