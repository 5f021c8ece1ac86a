package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
)

type approvalServiceMock struct {
	signReq   dto.SignRequest
	rejectReq dto.RejectRequest
	token     string
	caller    *models.Caller
	err       error
}

func (m *approvalServiceMock) GetApproval(ctx context.Context, caller *models.Caller, slotToken string) (*dto.ApprovalView, error) {
	m.token = slotToken
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ApprovalView{CanSign: true}, nil
}

func (m *approvalServiceMock) Sign(ctx context.Context, caller *models.Caller, slotToken string, req dto.SignRequest) (*dto.SignResult, error) {
	m.token = slotToken
	m.caller = caller
	m.signReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SignResult{State: models.DocumentStateApproved, Completed: true}, nil
}

func (m *approvalServiceMock) Reject(ctx context.Context, caller *models.Caller, slotToken string, req dto.RejectRequest) (*dto.SignResult, error) {
	m.token = slotToken
	m.rejectReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SignResult{State: models.DocumentStateRejected}, nil
}

func TestApprovalHandlerSignAcceptsEmptyBody(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newTestContext(http.MethodPost, "/approvals/tok/sign", nil, "application/json")
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	NewApprovalHandler(svc).Sign(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", svc.token)
	assert.Empty(t, svc.signReq.MemberID)
	assert.Same(t, testCaller, svc.caller)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["completed"])
}

func TestApprovalHandlerSignForwardsMember(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newTestContext(http.MethodPost, "/approvals/tok/sign", bytes.NewBufferString(`{"memberId":"m-1"}`), "application/json")
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	NewApprovalHandler(svc).Sign(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m-1", svc.signReq.MemberID)
}

func TestApprovalHandlerSignConflict(t *testing.T) {
	svc := &approvalServiceMock{err: appErrors.Conflict("slot already decided", models.SlotStateApproved)}
	c, w := newTestContext(http.MethodPost, "/approvals/tok/sign", nil, "application/json")
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	NewApprovalHandler(svc).Sign(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	details := errBody["details"].(map[string]interface{})
	assert.Equal(t, string(models.SlotStateApproved), details["state"])
}

func TestApprovalHandlerRejectRequiresBody(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newTestContext(http.MethodPost, "/approvals/tok/reject", bytes.NewBufferString("{"), "application/json")
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	NewApprovalHandler(svc).Reject(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.token)
}

func TestApprovalHandlerReject(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newTestContext(http.MethodPost, "/approvals/tok/reject", bytes.NewBufferString(`{"reason":"Falta firma"}`), "application/json")
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	NewApprovalHandler(svc).Reject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Falta firma", svc.rejectReq.Reason)
}

func TestApprovalHandlerGetNotFound(t *testing.T) {
	svc := &approvalServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "approval not found")}
	c, w := newTestContext(http.MethodGet, "/approvals/missing", nil, "")
	c.Params = gin.Params{{Key: "token", Value: "missing"}}

	NewApprovalHandler(svc).Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
