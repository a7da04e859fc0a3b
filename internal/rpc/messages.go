package rpc

// CreateBlockRequest asks the daemon to create a block device.
// Size and SourcePath are mutually exclusive.
type CreateBlockRequest struct {
	Name         string `json:"name,omitempty"`
	Size         string `json:"size,omitempty"`
	SourcePath   string `json:"source_path,omitempty"`
	InstanceName string `json:"instance_name,omitempty"`
	Verbosity    int32  `json:"verbosity_level,omitempty"`
}

// CreateBlockReply is the daemon's answer to CreateBlockRequest.
// The daemon may rename the device on collision and reports the final name
// in LogLine ("Created block device 'disk-ab'").
type CreateBlockReply struct {
	ErrorMessage string `json:"error_message,omitempty"`
	LogLine      string `json:"log_line,omitempty"`
}

func (r *CreateBlockReply) GetErrorMessage() string {
	if r == nil {
		return ""
	}
	return r.ErrorMessage
}

func (r *CreateBlockReply) GetLogLine() string {
	if r == nil {
		return ""
	}
	return r.LogLine
}

// AttachBlockRequest attaches a block device to a stopped instance.
type AttachBlockRequest struct {
	BlockName    string `json:"block_name"`
	InstanceName string `json:"instance_name"`
	Verbosity    int32  `json:"verbosity_level,omitempty"`
}

type AttachBlockReply struct {
	ErrorMessage string `json:"error_message,omitempty"`
	LogLine      string `json:"log_line,omitempty"`
}

func (r *AttachBlockReply) GetErrorMessage() string {
	if r == nil {
		return ""
	}
	return r.ErrorMessage
}

func (r *AttachBlockReply) GetLogLine() string {
	if r == nil {
		return ""
	}
	return r.LogLine
}

// DetachBlockRequest detaches a block device from an instance.
type DetachBlockRequest struct {
	BlockName    string `json:"block_name"`
	InstanceName string `json:"instance_name"`
	Verbosity    int32  `json:"verbosity_level,omitempty"`
}

type DetachBlockReply struct {
	ErrorMessage string `json:"error_message,omitempty"`
	LogLine      string `json:"log_line,omitempty"`
}

func (r *DetachBlockReply) GetErrorMessage() string {
	if r == nil {
		return ""
	}
	return r.ErrorMessage
}

func (r *DetachBlockReply) GetLogLine() string {
	if r == nil {
		return ""
	}
	return r.LogLine
}

// DeleteBlockRequest deletes an unattached block device.
type DeleteBlockRequest struct {
	Name      string `json:"name"`
	Verbosity int32  `json:"verbosity_level,omitempty"`
}

type DeleteBlockReply struct {
	ErrorMessage string `json:"error_message,omitempty"`
	LogLine      string `json:"log_line,omitempty"`
}

func (r *DeleteBlockReply) GetErrorMessage() string {
	if r == nil {
		return ""
	}
	return r.ErrorMessage
}

func (r *DeleteBlockReply) GetLogLine() string {
	if r == nil {
		return ""
	}
	return r.LogLine
}

type ListBlocksRequest struct {
	Verbosity int32 `json:"verbosity_level,omitempty"`
}

// BlockDevice describes one daemon-owned block device.
// An empty AttachedTo means the device is not attached.
type BlockDevice struct {
	Name       string `json:"name" yaml:"name"`
	Size       string `json:"size" yaml:"size"`
	Path       string `json:"path" yaml:"path"`
	AttachedTo string `json:"attached_to" yaml:"attached_to"`
}

type ListBlocksReply struct {
	BlockDevices []BlockDevice `json:"block_devices"`
}

func (r *ListBlocksReply) GetBlockDevices() []BlockDevice {
	if r == nil {
		return nil
	}
	return r.BlockDevices
}

// Find returns the device with the given name.
func (r *ListBlocksReply) Find(name string) (BlockDevice, bool) {
	for _, dev := range r.GetBlockDevices() {
		if dev.Name == name {
			return dev, true
		}
	}
	return BlockDevice{}, false
}

// Names returns the set of device names in the reply.
func (r *ListBlocksReply) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(r.GetBlockDevices()))
	for _, dev := range r.GetBlockDevices() {
		names[dev.Name] = struct{}{}
	}
	return names
}

// InstanceState is the lifecycle state of an instance as reported by the daemon.
type InstanceState string

const (
	InstanceRunning    InstanceState = "Running"
	InstanceStarting   InstanceState = "Starting"
	InstanceRestarting InstanceState = "Restarting"
	InstanceStopped    InstanceState = "Stopped"
	InstanceSuspended  InstanceState = "Suspended"
	InstanceDeleted    InstanceState = "Deleted"
	InstanceUnknown    InstanceState = "Unknown"
)

// Active reports whether the instance is running or on its way there.
func (s InstanceState) Active() bool {
	return s == InstanceRunning || s == InstanceStarting || s == InstanceRestarting
}

// Resource types named in errdetails.ResourceInfo of failed calls.
const (
	ResourceTypeInstance = "instance"
	ResourceTypeBlock    = "block device"
)

type InfoRequest struct {
	InstanceNames []string `json:"instance_names"`
	Verbosity     int32    `json:"verbosity_level,omitempty"`
}

type InstanceDetails struct {
	Name  string        `json:"name" yaml:"name"`
	State InstanceState `json:"state" yaml:"state"`
	Image string        `json:"image,omitempty" yaml:"image,omitempty"`
	IPv4  []string      `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	CPUs  int32         `json:"cpu_count,omitempty" yaml:"cpu_count,omitempty"`
}

type InfoReply struct {
	Details []InstanceDetails `json:"details"`
}

func (r *InfoReply) GetDetails() []InstanceDetails {
	if r == nil {
		return nil
	}
	return r.Details
}

type SSHInfoRequest struct {
	InstanceName string `json:"instance_name"`
	Verbosity    int32  `json:"verbosity_level,omitempty"`
}

type SSHInfo struct {
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	Username string `json:"username"`
}

type SSHInfoReply struct {
	SSHInfo map[string]SSHInfo `json:"ssh_info"`
}

func (r *SSHInfoReply) GetSSHInfo() map[string]SSHInfo {
	if r == nil {
		return nil
	}
	return r.SSHInfo
}

// ConfirmationRequest is sent mid-stream when the daemon needs the operator
// to approve something scoped to a single setting or operation.
type ConfirmationRequest struct {
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
}

// ConfirmationAnswer is written back on the same stream.
type ConfirmationAnswer struct {
	Key      string `json:"key"`
	Accepted bool   `json:"accepted"`
}

type StartRequest struct {
	InstanceNames []string            `json:"instance_names,omitempty"`
	Timeout       int32               `json:"timeout,omitempty"`
	Password      string              `json:"password,omitempty"`
	Confirmation  *ConfirmationAnswer `json:"confirmation,omitempty"`
	Verbosity     int32               `json:"verbosity_level,omitempty"`
}

func (r *StartRequest) SetPassword(password string) { r.Password = password }

func (r *StartRequest) SetConfirmation(answer *ConfirmationAnswer) { r.Confirmation = answer }

type StartReply struct {
	LogLine           string               `json:"log_line,omitempty"`
	ReplyMessage      string               `json:"reply_message,omitempty"`
	PasswordRequested bool                 `json:"password_requested,omitempty"`
	Confirmation      *ConfirmationRequest `json:"confirmation,omitempty"`
}

func (r *StartReply) GetLogLine() string {
	if r == nil {
		return ""
	}
	return r.LogLine
}

func (r *StartReply) GetReplyMessage() string {
	if r == nil {
		return ""
	}
	return r.ReplyMessage
}

func (r *StartReply) GetPasswordRequested() bool {
	return r != nil && r.PasswordRequested
}

func (r *StartReply) GetConfirmation() *ConfirmationRequest {
	if r == nil {
		return nil
	}
	return r.Confirmation
}

type LaunchRequest struct {
	InstanceName string              `json:"instance_name,omitempty"`
	Image        string              `json:"image,omitempty"`
	CPUs         int32               `json:"num_cores,omitempty"`
	MemSize      string              `json:"mem_size,omitempty"`
	DiskSpace    string              `json:"disk_space,omitempty"`
	Timeout      int32               `json:"timeout,omitempty"`
	Password     string              `json:"password,omitempty"`
	Confirmation *ConfirmationAnswer `json:"confirmation,omitempty"`
	Verbosity    int32               `json:"verbosity_level,omitempty"`
}

func (r *LaunchRequest) SetPassword(password string) { r.Password = password }

func (r *LaunchRequest) SetConfirmation(answer *ConfirmationAnswer) { r.Confirmation = answer }

// ProgressType identifies what a LaunchProgress percentage refers to.
type ProgressType string

const (
	ProgressImage   ProgressType = "image"
	ProgressExtract ProgressType = "extract"
	ProgressVerify  ProgressType = "verify"
)

// LaunchProgress reports a percentage; PercentComplete of -1 means the
// daemon cannot measure progress for this phase.
type LaunchProgress struct {
	Type            ProgressType `json:"type"`
	PercentComplete int32        `json:"percent_complete"`
}

type LaunchReply struct {
	LogLine           string               `json:"log_line,omitempty"`
	ReplyMessage      string               `json:"create_message,omitempty"`
	PasswordRequested bool                 `json:"password_requested,omitempty"`
	Confirmation      *ConfirmationRequest `json:"confirmation,omitempty"`
	Progress          *LaunchProgress      `json:"launch_progress,omitempty"`
	VMInstanceName    string               `json:"vm_instance_name,omitempty"`
}

func (r *LaunchReply) GetLogLine() string {
	if r == nil {
		return ""
	}
	return r.LogLine
}

func (r *LaunchReply) GetReplyMessage() string {
	if r == nil {
		return ""
	}
	return r.ReplyMessage
}

func (r *LaunchReply) GetPasswordRequested() bool {
	return r != nil && r.PasswordRequested
}

func (r *LaunchReply) GetConfirmation() *ConfirmationRequest {
	if r == nil {
		return nil
	}
	return r.Confirmation
}

func (r *LaunchReply) GetProgress() *LaunchProgress {
	if r == nil {
		return nil
	}
	return r.Progress
}

// IsFinal reports whether this is the reply that concludes a launch.
func (r *LaunchReply) IsFinal() bool {
	return r != nil && r.VMInstanceName != ""
}
