package services

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/go-ldap/ldap/v3"
)

type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled
}

// Authenticate binds as the user found by UserFilter to verify the password.
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, fmt.Errorf("LDAP is not enabled")
	}
	if password == "" {
		return nil, fmt.Errorf("invalid credentials")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var conn *ldap.Conn
	var err error

	if s.config.UseSSL {
		conn, err = ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host}))
	} else {
		conn, err = ldap.DialURL("ldap://" + addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(username)),
		[]string{"dn", "cn", "mail", "uid", "sAMAccountName", "memberOf"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in LDAP")
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found in LDAP")
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	user := &LDAPUser{
		DN:       entry.DN,
		Username: entry.GetAttributeValue("uid"),
		Email:    entry.GetAttributeValue("mail"),
		Name:     entry.GetAttributeValue("cn"),
	}
	// Active Directory
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	user.IsAdmin = s.inAdminGroup(entry.GetAttributeValues("memberOf"))

	return user, nil
}

func (s *LDAPService) inAdminGroup(groups []string) bool {
	if s.config.AdminGroup == "" {
		return false
	}
	for _, g := range groups {
		if strings.EqualFold(g, s.config.AdminGroup) {
			return true
		}
	}
	return false
}

type LDAPUser struct {
	DN       string
	Username string
	Email    string
	Name     string
	IsAdmin  bool
}
