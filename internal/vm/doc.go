// Package vm manages the instances behind the libvirt transport.
//
// A Manager launches instances from an image (boot volume backed by the
// image, cloud-init seed, domain definition), starts them, waits for their
// DHCP lease and attaches or detaches block devices while they are stopped.
//
// Launch is a saga: every resource it creates is recorded and removed again,
// best effort, when a later step fails. Cleanup failures are logged as
// warnings and never replace the error that caused them.
//
// The Manager talks to libvirt through consumer-side interfaces
// (interfaces.go) satisfied by *libvirt.Libvirt and *storage.Manager, so the
// package is tested with hand-written mocks.
package vm
