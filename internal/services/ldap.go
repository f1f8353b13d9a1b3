package services

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/huangang/studyhub/internal/config"
)

const ldapTimeout = 10 * time.Second

var (
	errLDAPDisabled       = errors.New("directory login is not enabled")
	errLDAPBadCredentials = errors.New("invalid directory credentials")
)

// attributes read from a directory entry. sAMAccountName covers Active Directory.
var ldapAttributes = []string{"dn", "cn", "mail", "uid", "sAMAccountName"}

type LDAPUser struct {
	DN       string
	Username string
	Email    string
	Name     string
}

// LDAPService checks directory credentials with a search-then-bind. Local accounts
// for directory users are created by AuthService on first login.
type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s != nil && s.config != nil && s.config.Enabled
}

func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, errLDAPDisabled
	}
	// an empty password would make the user bind an unauthenticated bind
	if password == "" {
		return nil, errLDAPBadCredentials
	}

	conn, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	entry, err := s.lookup(conn, username)
	if err != nil {
		return nil, err
	}
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, errLDAPBadCredentials
	}
	return entryToUser(entry), nil
}

func (s *LDAPService) url() string {
	scheme := "ldap"
	if s.config.UseSSL {
		scheme = "ldaps"
	}
	return scheme + "://" + net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

func (s *LDAPService) dial() (*ldap.Conn, error) {
	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: ldapTimeout})}
	if s.config.UseSSL {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host}))
	}
	conn, err := ldap.DialURL(s.url(), opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to directory %s: %w", s.config.Host, err)
	}
	conn.SetTimeout(ldapTimeout)

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("service account bind: %w", err)
		}
	}
	return conn, nil
}

// lookup finds exactly one entry for username under BaseDN.
func (s *LDAPService) lookup(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, int(ldapTimeout/time.Second), false,
		s.filter(username),
		ldapAttributes,
		nil,
	)
	res, err := conn.Search(req)
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("directory search: %w", err)
	}
	switch {
	case res == nil || len(res.Entries) == 0:
		return nil, errLDAPBadCredentials
	case len(res.Entries) > 1:
		return nil, fmt.Errorf("directory search for %q matched more than one entry", username)
	}
	return res.Entries[0], nil
}

func (s *LDAPService) filter(username string) string {
	f := s.config.UserFilter
	if f == "" {
		f = "(uid=%s)"
	}
	return fmt.Sprintf(f, ldap.EscapeFilter(username))
}

func entryToUser(entry *ldap.Entry) *LDAPUser {
	username := entry.GetAttributeValue("uid")
	if username == "" {
		username = entry.GetAttributeValue("sAMAccountName")
	}
	return &LDAPUser{
		DN:       entry.DN,
		Username: username,
		Email:    entry.GetAttributeValue("mail"),
		Name:     entry.GetAttributeValue("cn"),
	}
}
