// Package metadata keeps the launch record of an instance in libvirt's custom
// XML metadata, so what an instance was launched from persists with the domain
// itself instead of in a separate store.
package metadata

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/digitalocean/go-libvirt"
	"gopkg.in/yaml.v3"
)

const (
	// Namespace is the XML namespace of the forge metadata element.
	Namespace = "http://forge.cofront.xyz/instance/v1"

	// Key is the element prefix libvirt uses when it stores the element.
	Key = "forge"
)

// Record describes how an instance was launched.
type Record struct {
	Image      string    `yaml:"image"`
	CPUs       uint      `yaml:"cpus"`
	Memory     string    `yaml:"memory"`
	Disk       string    `yaml:"disk"`
	LaunchedAt time.Time `yaml:"launched_at"`
}

// instanceElement is the XML wrapper. The record is stored as YAML text for
// easy reading with `virsh dumpxml`.
type instanceElement struct {
	XMLName    xml.Name `xml:"instance"`
	Xmlns      string   `xml:"xmlns,attr"`
	RecordYAML string   `xml:",chardata"`
}

// LibvirtClient is the subset of *libvirt.Libvirt Load needs.
type LibvirtClient interface {
	DomainGetMetadata(Dom libvirt.Domain, Type int32, URI libvirt.OptString, Flags libvirt.DomainModificationImpact) (string, error)
}

// Element renders rec as the metadata element embedded in a domain
// definition (see libvirt.InstanceSpec.Metadata).
func Element(rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("metadata record cannot be nil")
	}

	yamlData, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata record to YAML: %w", err)
	}

	xmlData, err := xml.Marshal(instanceElement{
		Xmlns:      Namespace,
		RecordYAML: string(yamlData),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata to XML: %w", err)
	}

	return string(xmlData), nil
}

// Parse is the inverse of Element. It accepts the element with or without
// the namespace prefix libvirt adds when it returns it.
func Parse(element string) (*Record, error) {
	var el instanceElement
	if err := xml.Unmarshal([]byte(element), &el); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata XML: %w", err)
	}
	if el.XMLName.Space != "" && el.XMLName.Space != Namespace {
		return nil, fmt.Errorf("unexpected metadata namespace %q", el.XMLName.Space)
	}

	var rec Record
	if err := yaml.Unmarshal([]byte(strings.TrimSpace(el.RecordYAML)), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata record from YAML: %w", err)
	}

	return &rec, nil
}

// Load retrieves the launch record of a domain. Domains not launched by
// forge have none and return an error.
func Load(l LibvirtClient, domain libvirt.Domain) (*Record, error) {
	xmlStr, err := l.DomainGetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get libvirt domain metadata: %w", err)
	}

	return Parse(xmlStr)
}
