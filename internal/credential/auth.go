package credential

// AuthKind discriminates the active variant of an Auth descriptor.
type AuthKind int

const (
	// AuthNone means the operation proceeds unauthenticated.
	AuthNone AuthKind = iota
	// AuthPassword is plain username/password basic auth.
	AuthPassword
	// AuthToken is a personal access token presented over HTTPS.
	AuthToken
	// AuthSSHKey is an SSH private key on disk.
	AuthSSHKey
)

func (k AuthKind) String() string {
	switch k {
	case AuthPassword:
		return "password"
	case AuthToken:
		return "token"
	case AuthSSHKey:
		return "ssh-key"
	default:
		return "none"
	}
}

// Auth is the concrete authentication descriptor handed to an execution
// backend. Exactly one variant is active, selected by Kind; descriptors are
// constructed fresh per operation and never persisted.
type Auth struct {
	Kind AuthKind

	// Username applies to Password and Token descriptors. For tokens it
	// may be empty; backends substitute "git" where a name is mandatory.
	Username string
	// Password applies to Password descriptors only.
	Password string
	// Token applies to Token descriptors only.
	Token string
	// KeyPath and Passphrase apply to SSHKey descriptors only.
	KeyPath    string
	Passphrase string
}

// NoAuth returns the unauthenticated descriptor.
func NoAuth() Auth { return Auth{Kind: AuthNone} }

// TokenAuth returns a token descriptor.
func TokenAuth(token, username string) Auth {
	return Auth{Kind: AuthToken, Token: token, Username: username}
}

// PasswordAuth returns a username/password descriptor.
func PasswordAuth(username, password string) Auth {
	return Auth{Kind: AuthPassword, Username: username, Password: password}
}

// SSHKeyAuth returns an SSH key descriptor.
func SSHKeyAuth(keyPath, passphrase string) Auth {
	return Auth{Kind: AuthSSHKey, KeyPath: keyPath, Passphrase: passphrase}
}
