package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"sync"
)

// QEMUConfPath is where libvirt's QEMU driver configuration lives.
const QEMUConfPath = "/etc/libvirt/qemu.conf"

// fallbackQEMUID is the qemu uid/gid on Fedora and RHEL.
const fallbackQEMUID = "107"

var (
	qemuUID  string
	qemuGID  string
	qemuOnce sync.Once
	qemuErr  error
)

// GetQEMUUserGroup returns the UID and GID the QEMU process runs as, so
// volumes are created readable by it. The configured user in qemu.conf wins,
// then the common account names, then uid/gid 107 with a non-nil error.
//
// The result is cached after the first call.
func GetQEMUUserGroup() (uid, gid string, err error) {
	qemuOnce.Do(func() {
		qemuUID, qemuGID, qemuErr = resolveQEMUUserGroup(QEMUConfPath, user.Lookup, user.LookupGroup)
	})
	return qemuUID, qemuGID, qemuErr
}

func resolveQEMUUserGroup(confPath string,
	lookupUser func(string) (*user.User, error),
	lookupGroup func(string) (*user.Group, error),
) (string, string, error) {
	username, groupname := configuredQEMUUser(confPath)

	if username != "" {
		if u, err := lookupUser(username); err == nil {
			gid := u.Gid
			if groupname != "" {
				if g, err := lookupGroup(groupname); err == nil {
					gid = g.Gid
				}
			}
			return u.Uid, gid, nil
		}
	}

	for _, name := range []string{"qemu", "libvirt-qemu"} {
		if u, err := lookupUser(name); err == nil {
			return u.Uid, u.Gid, nil
		}
	}

	return fallbackQEMUID, fallbackQEMUID,
		fmt.Errorf("could not determine QEMU user/group, using fallback UID/GID %s", fallbackQEMUID)
}

// configuredQEMUUser returns the user and group set in a qemu.conf, or
// empty strings when the file is missing or does not set them.
func configuredQEMUUser(path string) (username, groupname string) {
	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer func() { _ = f.Close() }()

	return parseQEMUConf(f)
}

func parseQEMUConf(r io.Reader) (username, groupname string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		switch strings.TrimSpace(key) {
		case "user":
			username = value
		case "group":
			groupname = value
		}
	}

	return username, groupname
}
