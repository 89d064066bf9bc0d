package seed

// File is the top-level structure of a seed YAML file.
type File struct {
	Users     []User     `yaml:"users"`
	Sets      []Set      `yaml:"sets"`
	Shortcuts []Shortcut `yaml:"shortcuts"`
}

// User describes a principal. Exactly one of Password and PasswordHash is set.
type User struct {
	Username     string `yaml:"username"`
	Email        string `yaml:"email,omitempty"`
	Password     string `yaml:"password,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty"` // argon2id PHC string
	Active       *bool  `yaml:"active,omitempty"`        // default true
	Superuser    bool   `yaml:"superuser,omitempty"`
}

// Set describes a shortcut set. Owner and SharedWith are usernames.
type Set struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"` // "general" (default) | "personal"
	Description string   `yaml:"description,omitempty"`
	Owner       string   `yaml:"owner,omitempty"`
	SharedWith  []string `yaml:"shared_with,omitempty"`
}

// Shortcut describes an expansion entry and the sets it belongs to.
type Shortcut struct {
	Key       string   `yaml:"key"`
	Value     string   `yaml:"value,omitempty"`
	HTMLValue string   `yaml:"html_value,omitempty"`
	Sets      []string `yaml:"sets"`
	UpdatedBy string   `yaml:"updated_by,omitempty"`
}
