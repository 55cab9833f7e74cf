package controllers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"rescuehub/errs"
	"rescuehub/logger"
	"rescuehub/middleware"
	"rescuehub/models"
	"rescuehub/services"
	"rescuehub/utils"
)

// TaskController exposes the task lifecycle over HTTP. The caller's identity
// always comes from the access token, never from the body.
type TaskController struct {
	Tasks *services.TaskService
}

func NewTaskController(tasks *services.TaskService) *TaskController {
	return &TaskController{Tasks: tasks}
}

type completeRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// GET /v1/tasks?status=
func (c *TaskController) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := models.TaskStatus(r.URL.Query().Get("status"))
	tasks, err := c.Tasks.ListTasks(r.Context(), status)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []models.RescueTask{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: tasks})
}

// POST /v1/tasks
func (c *TaskController) CreateTask(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.caller(w, r)
	if !ok {
		return
	}
	var req services.CreateTaskParams
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	task, err := c.Tasks.CreateTask(r.Context(), uid, req)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Task created", Data: task})
}

// GET /v1/tasks/{id}
func (c *TaskController) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := c.Tasks.GetTask(r.Context(), id)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: task})
}

// POST /v1/tasks/{id}/claims
func (c *TaskController) ApplyClaim(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := c.Tasks.ApplyClaim(r.Context(), id, uid)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Application submitted", Data: task})
}

// POST /v1/tasks/{id}/claims/{userId}/approve
func (c *TaskController) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	applicant, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	task, err := c.Tasks.ApproveClaim(r.Context(), id, applicant, uid)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Claim approved", Data: task})
}

// POST /v1/tasks/{id}/complete
func (c *TaskController) CompleteClaim(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req completeRequest
	if r.ContentLength != 0 {
		if err := middleware.ValidateJSON(w, r, &req); err != nil {
			return
		}
	}
	task, err := c.Tasks.CompleteClaim(r.Context(), id, uid, req.Note)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Claim completed", Data: task})
}

// POST /v1/tasks/{id}/cancel
func (c *TaskController) CancelTask(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := c.Tasks.CancelTask(r.Context(), id, uid)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Task cancelled", Data: task})
}

// POST /v1/tasks/{id}/force-complete
func (c *TaskController) ForceComplete(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := c.Tasks.CreatorForceComplete(r.Context(), id, uid)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Task completed", Data: task})
}

// GET /v1/me/claims
func (c *TaskController) MyClaims(w http.ResponseWriter, r *http.Request) {
	uid, ok := c.caller(w, r)
	if !ok {
		return
	}
	claims, err := c.Tasks.ListClaims(r.Context(), uid)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if claims == nil {
		claims = []models.TaskClaim{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: claims})
}

// caller returns the authenticated user and refreshes their display name.
func (c *TaskController) caller(w http.ResponseWriter, r *http.Request) (uint, bool) {
	uid, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized", Code: string(errs.Permission)})
		return 0, false
	}
	if err := c.Tasks.EnsureUser(r.Context(), uid, utils.GetUserName(r)); err != nil {
		c.fail(w, r, err)
		return 0, false
	}
	return uid, true
}

func (c *TaskController) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errs.KindOf(err) == errs.Internal {
		logger.Error("[tasks] request_id=%s %s %s: %v", utils.RequestID(r.Context()), r.Method, r.URL.Path, err)
	}
	utils.WriteError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || v == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid " + name, Code: string(errs.Validation)})
		return 0, false
	}
	return uint(v), true
}
