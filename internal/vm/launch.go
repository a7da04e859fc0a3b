package vm

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/digitalocean/go-libvirt"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/jbweber/forge/internal/cloudinit"
	forgelibvirt "github.com/jbweber/forge/internal/libvirt"
	"github.com/jbweber/forge/internal/metadata"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/storage"
)

// ImageSource says where the base image of a launch comes from: an existing
// volume, or a local file that is imported into the image pool first.
type ImageSource struct {
	// Name is the reference as the user gave it; it goes into the launch record.
	Name string

	Pool   string
	Volume string

	File string
}

// LaunchSpec describes an instance to launch.
type LaunchSpec struct {
	Name        string
	Image       ImageSource
	CPUs        uint
	MemoryBytes uint64
	DiskBytes   uint64
}

// Progress receives launch narration. Either field may be nil.
type Progress struct {
	Step  func(message string)
	Image storage.ProgressFunc
}

func (p Progress) step(format string, args ...any) {
	if p.Step != nil {
		p.Step(fmt.Sprintf(format, args...))
	}
}

// Launch creates and boots a new instance:
//  1. Check the instance does not exist
//  2. Resolve the base image, importing a local file if needed
//  3. Create the boot volume backed by the image
//  4. Generate and write the cloud-init seed
//  5. Define the domain with its launch record, enable autostart and start it
//
// On any failure, resources created so far are removed again.
func (m *Manager) Launch(ctx context.Context, spec LaunchSpec, progress Progress) (err error) {
	log := zerolog.Ctx(ctx)

	var (
		domainDefined    bool
		bootCreated      bool
		cloudInitCreated bool
	)
	defer func() {
		if err != nil {
			m.cleanupLaunch(ctx, spec.Name, domainDefined, bootCreated, cloudInitCreated)
		}
	}()

	// Step 1: Check if the instance already exists
	log.Debug().Str("instance", spec.Name).Msg("Checking if instance already exists")
	if m.Exists(spec.Name) {
		return fmt.Errorf("%w: %s", ErrExists, spec.Name)
	}

	// Step 2: Resolve the base image
	progress.step("Preparing image %s", spec.Image.Name)
	backingPath, backingFormat, err := m.resolveImage(ctx, spec.Image, progress.Image)
	if err != nil {
		return err
	}

	// Step 3: Create the boot volume
	bootVolume := naming.VolumeNameBoot(spec.Name)
	progress.step("Creating boot disk (%s)", humanize.IBytes(spec.DiskBytes))
	err = m.sm.CreateVolume(ctx, m.opts.InstancePool, storage.VolumeSpec{
		Name:          bootVolume,
		Format:        storage.VolumeFormatQCOW2,
		Capacity:      spec.DiskBytes,
		BackingPath:   backingPath,
		BackingFormat: backingFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to create boot volume: %w", err)
	}
	bootCreated = true

	// Step 4: Generate and write the cloud-init seed
	progress.step("Writing cloud-init configuration")
	iso, err := cloudinit.GenerateISO(&cloudinit.Config{
		Hostname: spec.Name,
		User:     m.opts.SSHUser,
		SSHKeys:  m.opts.SSHKeys,
	})
	if err != nil {
		return fmt.Errorf("failed to generate cloud-init ISO: %w", err)
	}

	seedVolume := naming.VolumeNameCloudInit(spec.Name)
	err = m.sm.CreateVolume(ctx, m.opts.InstancePool, storage.VolumeSpec{
		Name:     seedVolume,
		Format:   storage.VolumeFormatRaw,
		Capacity: uint64(len(iso)),
	})
	if err != nil {
		return fmt.Errorf("failed to create cloud-init volume: %w", err)
	}
	cloudInitCreated = true

	if err = m.sm.WriteVolumeData(ctx, m.opts.InstancePool, seedVolume, iso); err != nil {
		return fmt.Errorf("failed to write cloud-init ISO: %w", err)
	}

	// Step 5: Define and start the domain
	record, err := metadata.Element(&metadata.Record{
		Image:      spec.Image.Name,
		CPUs:       spec.CPUs,
		Memory:     humanize.IBytes(spec.MemoryBytes),
		Disk:       humanize.IBytes(spec.DiskBytes),
		LaunchedAt: m.now().UTC(),
	})
	if err != nil {
		return err
	}

	domainXML, err := forgelibvirt.GenerateDomainXML(forgelibvirt.InstanceSpec{
		Name:            spec.Name,
		CPUs:            spec.CPUs,
		MemoryBytes:     spec.MemoryBytes,
		Pool:            m.opts.InstancePool,
		BootVolume:      bootVolume,
		CloudInitVolume: seedVolume,
		Network:         m.opts.Network,
		Metadata:        record,
	})
	if err != nil {
		return fmt.Errorf("failed to generate domain XML: %w", err)
	}

	log.Debug().Str("instance", spec.Name).Msg("Defining domain")
	dom, err := m.lv.DomainDefineXML(domainXML)
	if err != nil {
		return fmt.Errorf("failed to define domain: %w", err)
	}
	domainDefined = true

	if err = m.lv.DomainSetAutostart(dom, 1); err != nil {
		return fmt.Errorf("failed to set autostart: %w", err)
	}

	progress.step("Starting %s", spec.Name)
	if err = m.lv.DomainCreate(dom); err != nil {
		return fmt.Errorf("failed to start domain: %w", err)
	}

	log.Info().Str("instance", spec.Name).Msg("Instance launched")
	return nil
}

// resolveImage returns the path and format of the launch's base image.
// A file is imported into the image pool under its base name unless a
// volume of that name is there already.
func (m *Manager) resolveImage(ctx context.Context, img ImageSource, progress storage.ProgressFunc) (string, storage.VolumeFormat, error) {
	pool, volume := img.Pool, img.Volume

	if img.File != "" {
		pool, volume = m.opts.ImagePool, filepath.Base(img.File)

		exists, err := m.sm.VolumeExists(ctx, pool, volume)
		if err != nil {
			return "", "", fmt.Errorf("failed to check image volume: %w", err)
		}
		if !exists {
			zerolog.Ctx(ctx).Debug().Str("file", img.File).Str("volume", volume).Msg("Importing image")
			format, err := m.sm.ImportFile(ctx, pool, volume, img.File, progress)
			if err != nil {
				return "", "", fmt.Errorf("failed to import image %s: %w", img.File, err)
			}
			path, err := m.sm.GetVolumePath(ctx, pool, volume)
			if err != nil {
				return "", "", err
			}
			return path, format, nil
		}
	}

	exists, err := m.sm.VolumeExists(ctx, pool, volume)
	if err != nil {
		return "", "", fmt.Errorf("failed to check image volume: %w", err)
	}
	if !exists {
		return "", "", fmt.Errorf("image %s not found in pool %s", volume, pool)
	}

	path, err := m.sm.GetVolumePath(ctx, pool, volume)
	if err != nil {
		return "", "", err
	}

	// Cloud images are mostly qcow2 whatever their extension says.
	format, err := storage.DetectImageFormat(path)
	if err != nil {
		format = storage.VolumeFormatQCOW2
	}

	return path, format, nil
}

// cleanupLaunch removes what a failed launch created.
//
// This is best-effort: it logs errors but continues trying to clean up
// as much as possible. It never returns an error.
func (m *Manager) cleanupLaunch(ctx context.Context, name string, domainDefined, bootCreated, cloudInitCreated bool) {
	log := zerolog.Ctx(ctx)
	log.Debug().Str("instance", name).Msg("Cleaning up after failed launch")

	if domainDefined {
		dom, err := m.lv.DomainLookupByName(name)
		if err != nil {
			log.Warn().Err(err).Str("instance", name).Msg("Failed to look up domain for cleanup")
		} else {
			// Fails when the domain never started.
			_ = m.lv.DomainDestroy(dom)

			if err := m.lv.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
				log.Warn().Err(err).Str("instance", name).Msg("Failed to undefine domain")
			}
		}
	}

	if cloudInitCreated {
		if err := m.sm.DeleteVolume(ctx, m.opts.InstancePool, naming.VolumeNameCloudInit(name)); err != nil {
			log.Warn().Err(err).Str("instance", name).Msg("Failed to delete cloud-init volume")
		}
	}

	if bootCreated {
		if err := m.sm.DeleteVolume(ctx, m.opts.InstancePool, naming.VolumeNameBoot(name)); err != nil {
			log.Warn().Err(err).Str("instance", name).Msg("Failed to delete boot volume")
		}
	}
}
