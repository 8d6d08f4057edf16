package h

import (
	"fmt"
	"net/url"
	"strings"
)

// ReplaceUrlDatabase rewrites the database segment (the URL path) of a
// database URL, keeping credentials and query parameters intact.
func ReplaceUrlDatabase(databaseUrl string, dbName string) (string, error) {
	u, err := url.Parse(databaseUrl)
	if err != nil {
		return "", err
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

// UrlDatabase returns the database segment of a database URL, or "" when
// the URL has no path.
func UrlDatabase(databaseUrl string) (string, error) {
	u, err := url.Parse(databaseUrl)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

// WithUserInfo injects credentials into a database URL unless the URL
// already carries its own.
func WithUserInfo(databaseUrl string, username string, password string) (string, error) {
	u, err := url.Parse(databaseUrl)
	if err != nil {
		return "", err
	}
	if u.User != nil && u.User.Username() != "" {
		return databaseUrl, nil
	}
	if username == "" {
		return databaseUrl, nil
	}
	if password != "" {
		u.User = url.UserPassword(username, password)
	} else {
		u.User = url.User(username)
	}
	return u.String(), nil
}

// MysqlDSN converts a mysql:// URL into the DSN format expected by
// go-sql-driver/mysql (user:pass@tcp(host:port)/dbname?params).
func MysqlDSN(databaseUrl string) (string, error) {
	u, err := url.Parse(databaseUrl)
	if err != nil {
		return "", err
	}
	if u.Scheme != "mysql" {
		return "", fmt.Errorf("not a mysql url: %s", databaseUrl)
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":3306"
	}
	creds := ""
	if u.User != nil {
		creds = u.User.Username()
		if password, ok := u.User.Password(); ok {
			creds += ":" + password
		}
		creds += "@"
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", creds, host, strings.TrimPrefix(u.Path, "/"))
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}
	return dsn, nil
}
