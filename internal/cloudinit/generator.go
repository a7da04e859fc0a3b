// Package cloudinit provides cloud-init configuration generation for launched
// instances.
//
// This package generates cloud-init configuration files (user-data, meta-data, network-config)
// following the official cloud-init NoCloud datasource specification.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is what the seed of one instance is generated from.
type Config struct {
	// Hostname is usually the instance name; an FQDN is split on the first dot.
	Hostname string

	// InstanceID identifies the first boot to cloud-init. Empty means a
	// random UUID, so a relaunched instance with the same name is
	// provisioned again.
	InstanceID string

	// User is the default user the SSH keys are installed for.
	User    string
	SSHKeys []string

	// PasswordHash is an optional crypt(3) hash for User.
	PasswordHash string
}

// UserData represents the cloud-config user-data structure.
// This is marshaled to YAML and prefixed with "#cloud-config" header.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
type UserData struct {
	Hostname          string       `yaml:"hostname"`
	FQDN              string       `yaml:"fqdn"`
	SystemInfo        *SystemInfo  `yaml:"system_info,omitempty"`
	SSHAuthorizedKeys []string     `yaml:"ssh_authorized_keys,omitempty"`
	Chpasswd          *Chpasswd    `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth   bool         `yaml:"ssh_pwauth"`
	Output            *Output      `yaml:"output,omitempty"`
	Growpart          *GrowpartCfg `yaml:"growpart,omitempty"`
}

// SystemInfo renames the distribution's default user.
type SystemInfo struct {
	DefaultUser DefaultUser `yaml:"default_user"`
}

type DefaultUser struct {
	Name string `yaml:"name"`
}

// Chpasswd configures user password settings.
type Chpasswd struct {
	Expire bool   `yaml:"expire"`
	List   string `yaml:"list"` // "username:hash"
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// GrowpartCfg grows the root partition to the boot volume size.
type GrowpartCfg struct {
	Mode    string   `yaml:"mode"`
	Devices []string `yaml:"devices"`
}

// MetaData represents the cloud-init meta-data structure.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// NetworkConfig represents the netplan v2 network configuration.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/network-config-format-v2.html
type NetworkConfig struct {
	Version   int                       `yaml:"version"`
	Ethernets map[string]EthernetConfig `yaml:"ethernets"`
}

// EthernetConfig represents a single ethernet interface configuration.
type EthernetConfig struct {
	Match MatchConfig `yaml:"match"`
	DHCP4 bool        `yaml:"dhcp4"`
}

// MatchConfig matches interfaces by name glob.
type MatchConfig struct {
	Name string `yaml:"name"`
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("cloud-init configuration cannot be nil")
	}
	if c.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	return nil
}

// GenerateUserData generates the user-data content.
//
// Returns the complete user-data file content including the "#cloud-config" header.
func GenerateUserData(cfg *Config) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}

	hostname, _, _ := strings.Cut(cfg.Hostname, ".")

	userData := UserData{
		Hostname:          hostname,
		FQDN:              cfg.Hostname,
		SSHAuthorizedKeys: cfg.SSHKeys,
		SSHPasswordAuth:   false,
		Output: &Output{
			All: "| tee -a /var/log/cloud-init-output.log",
		},
		Growpart: &GrowpartCfg{
			Mode:    "auto",
			Devices: []string{"/"},
		},
	}

	if cfg.User != "" {
		userData.SystemInfo = &SystemInfo{DefaultUser: DefaultUser{Name: cfg.User}}
	}

	if cfg.PasswordHash != "" {
		user := cfg.User
		if user == "" {
			user = "root"
		}
		userData.Chpasswd = &Chpasswd{
			Expire: false,
			List:   fmt.Sprintf("%s:%s", user, cfg.PasswordHash),
		}
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	return "#cloud-config\n" + string(yamlBytes), nil
}

// GenerateMetaData generates the meta-data content.
func GenerateMetaData(cfg *Config) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}

	id := cfg.InstanceID
	if id == "" {
		id = uuid.NewString()
	}

	hostname, _, _ := strings.Cut(cfg.Hostname, ".")
	metaData := MetaData{
		InstanceID:    id,
		LocalHostname: hostname,
	}

	yamlBytes, err := yaml.Marshal(&metaData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}

	return string(yamlBytes), nil
}

// GenerateNetworkConfig generates a netplan v2 configuration that runs DHCP
// on every ethernet interface. Instances sit on a libvirt NAT network whose
// dnsmasq hands out the addresses forge later reads back from the leases.
func GenerateNetworkConfig() (string, error) {
	networkConfig := NetworkConfig{
		Version: 2,
		Ethernets: map[string]EthernetConfig{
			"default": {
				Match: MatchConfig{Name: "en*"},
				DHCP4: true,
			},
		},
	}

	yamlBytes, err := yaml.Marshal(&networkConfig)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network-config to YAML: %w", err)
	}

	return string(yamlBytes), nil
}
