package joy

import "fmt"

const subsystemMask = 0x00ff_0000_0000_0000
const pidMask = 0x0000_ffff_0000_0000
const errorNumberMask = 0x0000_0000_0000_ffff

const JoyNoError = JoyError(0)

// Memory Errors
const MemorySubsystem = 1
const MemoryOutOfFrames = 1
const MemoryBadImage = 2
const MemoryBadAddress = 3

var ErrorMemoryOutOfFrames = errorValue(MemorySubsystem, MemoryOutOfFrames)
var ErrorMemoryBadImage = errorValue(MemorySubsystem, MemoryBadImage)
var ErrorMemoryBadAddress = errorValue(MemorySubsystem, MemoryBadAddress)

// Task Errors
const TaskSubsystem = 2
const TaskNoReadyTask = 1
const TaskNoSuchTask = 2
const TaskBadPriority = 3
const TaskNoSuchApp = 4
const TaskShutdown = 5

var ErrorTaskNoReadyTask = errorValue(TaskSubsystem, TaskNoReadyTask)
var ErrorTaskNoSuchTask = errorValue(TaskSubsystem, TaskNoSuchTask)
var ErrorTaskBadPriority = errorValue(TaskSubsystem, TaskBadPriority)
var ErrorTaskNoSuchApp = errorValue(TaskSubsystem, TaskNoSuchApp)
var ErrorTaskShutdown = errorValue(TaskSubsystem, TaskShutdown)

// File Errors
const FileSubsystem = 3
const FileBadDescriptor = 1
const FileTooManyOpen = 2
const FileNotPermitted = 3

var ErrorFileBadDescriptor = errorValue(FileSubsystem, FileBadDescriptor)
var ErrorFileTooManyOpen = errorValue(FileSubsystem, FileTooManyOpen)
var ErrorFileNotPermitted = errorValue(FileSubsystem, FileNotPermitted)

// Mail Errors
const MailSubsystem = 4
const MailBoxFull = 1
const MailBoxEmpty = 2

var ErrorMailBoxFull = errorValue(MailSubsystem, MailBoxFull)
var ErrorMailBoxEmpty = errorValue(MailSubsystem, MailBoxEmpty)

type JoyError uint64
type RawJoyError uint64 // error with just the constant part of the value filled in

var errorMap = map[uint64]string{
	uint64(ErrorMemoryOutOfFrames): "no physical frames left",
	uint64(ErrorMemoryBadImage):    "application image cannot be loaded",
	uint64(ErrorMemoryBadAddress):  "bad user address",
	uint64(ErrorTaskNoReadyTask):   "no task is ready to run",
	uint64(ErrorTaskNoSuchTask):    "no task with that pid",
	uint64(ErrorTaskBadPriority):   "priority must be at least 2",
	uint64(ErrorTaskNoSuchApp):     "no application with that name",
	uint64(ErrorTaskShutdown):      "dispatch limit reached",
	uint64(ErrorFileBadDescriptor): "bad file descriptor",
	uint64(ErrorFileTooManyOpen):   "too many open files",
	uint64(ErrorFileNotPermitted):  "file not opened for this access",
	uint64(ErrorMailBoxFull):       "mailbox is full",
	uint64(ErrorMailBoxEmpty):      "mailbox is empty",
}

func (j JoyError) Error() string {
	return JoyErrorMessage(j)
}

func (r RawJoyError) Error() string {
	return errorText(uint64(r))
}

// Is lets errors.Is match a stamped error against its raw constant.
func (j JoyError) Is(target error) bool {
	r, ok := target.(RawJoyError)
	return ok && uint64(j)&^pidMask == uint64(r)
}

func JoyErrorMessage(j JoyError) string {
	return errorText(uint64(j))
}

func errorText(raw uint64) string {
	t, ok := errorMap[raw&^pidMask]
	if !ok {
		return "Unknown error code"
	}
	pid := (raw & pidMask) >> 32
	return fmt.Sprintf("Task %d: %s", pid, t)
}

func errorValue(subsys byte, errorNumber uint16) RawJoyError {
	ss := subsystemMask & (uint64(subsys) << 48)
	en := errorNumberMask & (uint64(errorNumber) << 0)
	return RawJoyError(ss | en)
}

// MakeError adds the dynamic fields (the pid of the task) to the error value.
func MakeError(rawError RawJoyError, pid PID) JoyError {
	raw := uint64(rawError)
	p := (uint64(pid) << 32) & pidMask
	return JoyError(raw | p)
}
