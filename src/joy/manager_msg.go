package joy

type req_TaskManager_Add struct {
	task *TaskControlBlock
}
type res_TaskManager_Add struct{}
type req_TaskManager_RunFirstTask struct{}
type res_TaskManager_RunFirstTask struct {
	Arg0 *TaskControlBlock
	Arg1 error
}
type req_TaskManager_MarkCurrentSuspended struct{}
type res_TaskManager_MarkCurrentSuspended struct {
	Arg0 *TaskControlBlock
}
type req_TaskManager_MarkCurrentExited struct{}
type res_TaskManager_MarkCurrentExited struct {
	Arg0 *TaskControlBlock
}
type req_TaskManager_FindNextTaskStride struct{}
type res_TaskManager_FindNextTaskStride struct {
	Arg0 *TaskControlBlock
}
type req_TaskManager_RunNextTask struct{}
type res_TaskManager_RunNextTask struct {
	Arg0 *TaskControlBlock // previous
	Arg1 *TaskControlBlock // next
	Arg2 error
}
type req_TaskManager_SetPriority struct {
	prio int64
}
type res_TaskManager_SetPriority struct {
	Arg0 int64
}
type req_TaskManager_Current struct{}
type res_TaskManager_Current struct {
	Arg0 *TaskControlBlock
}
type req_TaskManager_TaskByPID struct {
	pid PID
}
type res_TaskManager_TaskByPID struct {
	Arg0 *TaskControlBlock
}
type req_TaskManager_Remove struct {
	task *TaskControlBlock
}
type res_TaskManager_Remove struct {
	Arg0 bool
}
type req_TaskManager_Snapshot struct{}
type res_TaskManager_Snapshot struct {
	Arg0 []TaskInfo
}
type req_TaskManager_Shutdown struct{}
type res_TaskManager_Shutdown struct{}

// Interface types and implementations
type reqTaskManager interface {
	is_reqTaskManager()
}
type resTaskManager interface {
	is_resTaskManager()
}

func (r req_TaskManager_Add) is_reqTaskManager()                  {}
func (r res_TaskManager_Add) is_resTaskManager()                  {}
func (r req_TaskManager_RunFirstTask) is_reqTaskManager()         {}
func (r res_TaskManager_RunFirstTask) is_resTaskManager()         {}
func (r req_TaskManager_MarkCurrentSuspended) is_reqTaskManager() {}
func (r res_TaskManager_MarkCurrentSuspended) is_resTaskManager() {}
func (r req_TaskManager_MarkCurrentExited) is_reqTaskManager()    {}
func (r res_TaskManager_MarkCurrentExited) is_resTaskManager()    {}
func (r req_TaskManager_FindNextTaskStride) is_reqTaskManager()   {}
func (r res_TaskManager_FindNextTaskStride) is_resTaskManager()   {}
func (r req_TaskManager_RunNextTask) is_reqTaskManager()          {}
func (r res_TaskManager_RunNextTask) is_resTaskManager()          {}
func (r req_TaskManager_SetPriority) is_reqTaskManager()          {}
func (r res_TaskManager_SetPriority) is_resTaskManager()          {}
func (r req_TaskManager_Current) is_reqTaskManager()              {}
func (r res_TaskManager_Current) is_resTaskManager()              {}
func (r req_TaskManager_TaskByPID) is_reqTaskManager()            {}
func (r res_TaskManager_TaskByPID) is_resTaskManager()            {}
func (r req_TaskManager_Remove) is_reqTaskManager()               {}
func (r res_TaskManager_Remove) is_resTaskManager()               {}
func (r req_TaskManager_Snapshot) is_reqTaskManager()             {}
func (r res_TaskManager_Snapshot) is_resTaskManager()             {}
func (r req_TaskManager_Shutdown) is_reqTaskManager()             {}
func (r res_TaskManager_Shutdown) is_resTaskManager()             {}
