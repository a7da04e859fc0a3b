// Package config loads the forge client configuration.
//
// The configuration is a YAML file, by default $XDG_CONFIG_HOME/forge/config.yaml.
// A missing default file is not an error: every field has a default. Selected
// fields can be overridden from the environment (see ApplyEnv) and, in
// cmd/forge, from flags.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/jbweber/forge/internal/naming"
)

// Transport selects how the client reaches the daemon operations.
type Transport string

const (
	// TransportGRPC talks to forged over gRPC.
	TransportGRPC Transport = "grpc"
	// TransportLibvirt serves the operations in-process from libvirtd.
	TransportLibvirt Transport = "libvirt"
)

// Defaults.
const (
	DefaultAddress          = "unix:///run/forge/forged.sock"
	DefaultDialTimeout      = 5 * time.Second
	DefaultLibvirtSocket    = "/var/run/libvirt/libvirt-sock"
	DefaultBlockPool        = "forge-blocks"
	DefaultBlockPoolPath    = "/var/lib/libvirt/images/forge/blocks"
	DefaultImagePool        = "forge-images"
	DefaultImagePoolPath    = "/var/lib/libvirt/images/forge/images"
	DefaultInstancePool     = "forge-instances"
	DefaultInstancePoolPath = "/var/lib/libvirt/images/forge/instances"
	DefaultNetwork          = "default"
	DefaultImage            = "noble"
	DefaultSSHUser          = "ubuntu"
	DefaultPrimaryInstance  = "primary"
)

// Config is the complete client configuration.
type Config struct {
	Daemon          DaemonConfig  `yaml:"daemon"`
	Libvirt         LibvirtConfig `yaml:"libvirt"`
	PrimaryInstance string        `yaml:"primary_instance,omitempty"`
	SSHKeys         []string      `yaml:"ssh_keys,omitempty"`
}

// DaemonConfig says where the daemon is.
type DaemonConfig struct {
	Address     string        `yaml:"address,omitempty"`
	Transport   Transport     `yaml:"transport,omitempty"`
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty"`
}

// LibvirtConfig is used by the libvirt transport only.
type LibvirtConfig struct {
	Socket           string `yaml:"socket,omitempty"`
	BlockPool        string `yaml:"block_pool,omitempty"`
	BlockPoolPath    string `yaml:"block_pool_path,omitempty"`
	ImagePool        string `yaml:"image_pool,omitempty"`
	ImagePoolPath    string `yaml:"image_pool_path,omitempty"`
	InstancePool     string `yaml:"instance_pool,omitempty"`
	InstancePoolPath string `yaml:"instance_pool_path,omitempty"`
	Network          string `yaml:"network,omitempty"` // libvirt network for launched instances
	Image            string `yaml:"image,omitempty"`   // image launch uses without --image
	SSHUser          string `yaml:"ssh_user,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize trims user input and fills in defaults for unset fields.
func (c *Config) Normalize() {
	c.Daemon.Address = strings.TrimSpace(c.Daemon.Address)
	c.Daemon.Transport = Transport(strings.ToLower(strings.TrimSpace(string(c.Daemon.Transport))))
	c.PrimaryInstance = strings.TrimSpace(c.PrimaryInstance)

	if c.Daemon.Address == "" {
		c.Daemon.Address = DefaultAddress
	}
	if c.Daemon.Transport == "" {
		c.Daemon.Transport = TransportGRPC
	}
	if c.Daemon.DialTimeout == 0 {
		c.Daemon.DialTimeout = DefaultDialTimeout
	}
	if c.PrimaryInstance == "" {
		c.PrimaryInstance = DefaultPrimaryInstance
	}

	l := &c.Libvirt
	setDefault(&l.Socket, DefaultLibvirtSocket)
	setDefault(&l.BlockPool, DefaultBlockPool)
	setDefault(&l.BlockPoolPath, DefaultBlockPoolPath)
	setDefault(&l.ImagePool, DefaultImagePool)
	setDefault(&l.ImagePoolPath, DefaultImagePoolPath)
	setDefault(&l.InstancePool, DefaultInstancePool)
	setDefault(&l.InstancePoolPath, DefaultInstancePoolPath)
	setDefault(&l.Network, DefaultNetwork)
	setDefault(&l.Image, DefaultImage)
	setDefault(&l.SSHUser, DefaultSSHUser)

	for i, key := range c.SSHKeys {
		c.SSHKeys[i] = strings.TrimSpace(key)
	}
}

func setDefault(field *string, value string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = value
	}
}

var poolNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate checks the configuration for errors. It does not contact the
// daemon or libvirtd.
func (c *Config) Validate() error {
	switch c.Daemon.Transport {
	case TransportGRPC, TransportLibvirt:
	default:
		return fmt.Errorf("daemon.transport must be %q or %q, got %q", TransportGRPC, TransportLibvirt, c.Daemon.Transport)
	}

	if c.Daemon.DialTimeout < 0 {
		return fmt.Errorf("daemon.dial_timeout must not be negative, got %s", c.Daemon.DialTimeout)
	}

	pools := []struct {
		field, name, path string
	}{
		{"block_pool", c.Libvirt.BlockPool, c.Libvirt.BlockPoolPath},
		{"image_pool", c.Libvirt.ImagePool, c.Libvirt.ImagePoolPath},
		{"instance_pool", c.Libvirt.InstancePool, c.Libvirt.InstancePoolPath},
	}
	for _, p := range pools {
		if !poolNameRe.MatchString(p.name) {
			return fmt.Errorf("libvirt.%s is not a valid pool name: %q", p.field, p.name)
		}
		if !strings.HasPrefix(p.path, "/") {
			return fmt.Errorf("libvirt.%s_path must be an absolute path, got %q", p.field, p.path)
		}
	}
	if c.Libvirt.BlockPool == c.Libvirt.ImagePool || c.Libvirt.BlockPool == c.Libvirt.InstancePool {
		return fmt.Errorf("libvirt.block_pool %q must not be shared with another pool", c.Libvirt.BlockPool)
	}

	if !naming.ValidInstanceName(c.PrimaryInstance) {
		return fmt.Errorf("primary_instance is not a valid instance name: %q", c.PrimaryInstance)
	}

	// ParseAuthorizedKey accepts every key type ssh understands.
	for i, key := range c.SSHKeys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return fmt.Errorf("ssh_keys[%d] is not a valid SSH public key: %w", i, err)
		}
	}

	return nil
}

// ImageReference resolves an image argument of launch.
// Supports three formats:
//   - Volume name only: "noble" -> the configured image pool
//   - Pool:volume: "images:noble.qcow2" -> explicit pool and volume
//   - File path: "/srv/images/noble.img" -> isFile is true
func (l *LibvirtConfig) ImageReference(image string) (pool, volume string, isFile bool, err error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", "", false, fmt.Errorf("image reference is empty")
	}

	if strings.Contains(image, "/") || strings.HasPrefix(image, ".") {
		return "", "", true, nil
	}

	if p, v, ok := strings.Cut(image, ":"); ok {
		p, v = strings.TrimSpace(p), strings.TrimSpace(v)
		if p == "" || v == "" {
			return "", "", false, fmt.Errorf("invalid pool:volume format: pool and volume cannot be empty")
		}
		return p, v, false, nil
	}

	return l.ImagePool, image, false, nil
}
