package farmer

import (
	"context"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/pool"
	"github.com/plotfarm/go-farmer/signing"
	"github.com/plotfarm/go-farmer/supervisor"
	"github.com/plotfarm/go-farmer/wire"
)

// MockProofSource is a mock of ProofSource interface.
type MockProofSource struct {
	ctrl     *gomock.Controller
	recorder *MockProofSourceMockRecorder
}

// MockProofSourceMockRecorder is the mock recorder for MockProofSource.
type MockProofSourceMockRecorder struct {
	mock *MockProofSource
}

// NewMockProofSource creates a new mock instance.
func NewMockProofSource(ctrl *gomock.Controller) *MockProofSource {
	mock := &MockProofSource{ctrl: ctrl}
	mock.recorder = &MockProofSourceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProofSource) EXPECT() *MockProofSourceMockRecorder {
	return m.recorder
}

// Challenge mocks base method.
func (m *MockProofSource) Challenge(arg0 context.Context, arg1 *wire.NewSignagePointHarvester, arg2 func(*wire.NewProofOfSpace)) (*wire.FarmingInfo, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Challenge", arg0, arg1, arg2)
	ret0, _ := ret[0].(*wire.FarmingInfo)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Challenge indicates an expected call of Challenge.
func (mr *MockProofSourceMockRecorder) Challenge(arg0, arg1, arg2 any) *MockProofSourceChallengeCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Challenge", reflect.TypeOf((*MockProofSource)(nil).Challenge), arg0, arg1, arg2)
	return &MockProofSourceChallengeCall{Call: call}
}

// MockProofSourceChallengeCall wrap *gomock.Call.
type MockProofSourceChallengeCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockProofSourceChallengeCall) Return(arg0 *wire.FarmingInfo, arg1 error) *MockProofSourceChallengeCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockProofSourceChallengeCall) Do(f func(context.Context, *wire.NewSignagePointHarvester, func(*wire.NewProofOfSpace)) (*wire.FarmingInfo, error)) *MockProofSourceChallengeCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockProofSourceChallengeCall) DoAndReturn(f func(context.Context, *wire.NewSignagePointHarvester, func(*wire.NewProofOfSpace)) (*wire.FarmingInfo, error)) *MockProofSourceChallengeCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// ID mocks base method.
func (m *MockProofSource) ID() uuid.UUID {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ID")
	ret0, _ := ret[0].(uuid.UUID)
	return ret0
}

// ID indicates an expected call of ID.
func (mr *MockProofSourceMockRecorder) ID() *MockProofSourceIDCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ID", reflect.TypeOf((*MockProofSource)(nil).ID))
	return &MockProofSourceIDCall{Call: call}
}

// MockProofSourceIDCall wrap *gomock.Call.
type MockProofSourceIDCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockProofSourceIDCall) Return(arg0 uuid.UUID) *MockProofSourceIDCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockProofSourceIDCall) Do(f func() uuid.UUID) *MockProofSourceIDCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockProofSourceIDCall) DoAndReturn(f func() uuid.UUID) *MockProofSourceIDCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Name mocks base method.
func (m *MockProofSource) Name() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Name")
	ret0, _ := ret[0].(string)
	return ret0
}

// Name indicates an expected call of Name.
func (mr *MockProofSourceMockRecorder) Name() *MockProofSourceNameCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockProofSource)(nil).Name))
	return &MockProofSourceNameCall{Call: call}
}

// MockProofSourceNameCall wrap *gomock.Call.
type MockProofSourceNameCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockProofSourceNameCall) Return(arg0 string) *MockProofSourceNameCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockProofSourceNameCall) Do(f func() string) *MockProofSourceNameCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockProofSourceNameCall) DoAndReturn(f func() string) *MockProofSourceNameCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Plots mocks base method.
func (m *MockProofSource) Plots() int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Plots")
	ret0, _ := ret[0].(int)
	return ret0
}

// Plots indicates an expected call of Plots.
func (mr *MockProofSourceMockRecorder) Plots() *MockProofSourcePlotsCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Plots", reflect.TypeOf((*MockProofSource)(nil).Plots))
	return &MockProofSourcePlotsCall{Call: call}
}

// MockProofSourcePlotsCall wrap *gomock.Call.
type MockProofSourcePlotsCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockProofSourcePlotsCall) Return(arg0 int) *MockProofSourcePlotsCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockProofSourcePlotsCall) Do(f func() int) *MockProofSourcePlotsCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockProofSourcePlotsCall) DoAndReturn(f func() int) *MockProofSourcePlotsCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// SignatureShares mocks base method.
func (m *MockProofSource) SignatureShares(arg0 context.Context, arg1 *wire.RequestSignatures) (*wire.RespondSignatures, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SignatureShares", arg0, arg1)
	ret0, _ := ret[0].(*wire.RespondSignatures)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SignatureShares indicates an expected call of SignatureShares.
func (mr *MockProofSourceMockRecorder) SignatureShares(arg0, arg1 any) *MockProofSourceSignatureSharesCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SignatureShares", reflect.TypeOf((*MockProofSource)(nil).SignatureShares), arg0, arg1)
	return &MockProofSourceSignatureSharesCall{Call: call}
}

// MockProofSourceSignatureSharesCall wrap *gomock.Call.
type MockProofSourceSignatureSharesCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockProofSourceSignatureSharesCall) Return(arg0 *wire.RespondSignatures, arg1 error) *MockProofSourceSignatureSharesCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockProofSourceSignatureSharesCall) Do(f func(context.Context, *wire.RequestSignatures) (*wire.RespondSignatures, error)) *MockProofSourceSignatureSharesCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockProofSourceSignatureSharesCall) DoAndReturn(f func(context.Context, *wire.RequestSignatures) (*wire.RespondSignatures, error)) *MockProofSourceSignatureSharesCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// State mocks base method.
func (m *MockProofSource) State() supervisor.State {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "State")
	ret0, _ := ret[0].(supervisor.State)
	return ret0
}

// State indicates an expected call of State.
func (mr *MockProofSourceMockRecorder) State() *MockProofSourceStateCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "State", reflect.TypeOf((*MockProofSource)(nil).State))
	return &MockProofSourceStateCall{Call: call}
}

// MockProofSourceStateCall wrap *gomock.Call.
type MockProofSourceStateCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockProofSourceStateCall) Return(arg0 supervisor.State) *MockProofSourceStateCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockProofSourceStateCall) Do(f func() supervisor.State) *MockProofSourceStateCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockProofSourceStateCall) DoAndReturn(f func() supervisor.State) *MockProofSourceStateCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockPoolMember is a mock of PoolMember interface.
type MockPoolMember struct {
	ctrl     *gomock.Controller
	recorder *MockPoolMemberMockRecorder
}

// MockPoolMemberMockRecorder is the mock recorder for MockPoolMember.
type MockPoolMemberMockRecorder struct {
	mock *MockPoolMember
}

// NewMockPoolMember creates a new mock instance.
func NewMockPoolMember(ctrl *gomock.Controller) *MockPoolMember {
	mock := &MockPoolMember{ctrl: ctrl}
	mock.recorder = &MockPoolMemberMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPoolMember) EXPECT() *MockPoolMemberMockRecorder {
	return m.recorder
}

// AuthKey mocks base method.
func (m *MockPoolMember) AuthKey() *signing.PrivateKey {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AuthKey")
	ret0, _ := ret[0].(*signing.PrivateKey)
	return ret0
}

// AuthKey indicates an expected call of AuthKey.
func (mr *MockPoolMemberMockRecorder) AuthKey() *MockPoolMemberAuthKeyCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AuthKey", reflect.TypeOf((*MockPoolMember)(nil).AuthKey))
	return &MockPoolMemberAuthKeyCall{Call: call}
}

// MockPoolMemberAuthKeyCall wrap *gomock.Call.
type MockPoolMemberAuthKeyCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberAuthKeyCall) Return(arg0 *signing.PrivateKey) *MockPoolMemberAuthKeyCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberAuthKeyCall) Do(f func() *signing.PrivateKey) *MockPoolMemberAuthKeyCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberAuthKeyCall) DoAndReturn(f func() *signing.PrivateKey) *MockPoolMemberAuthKeyCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// AuthenticationToken mocks base method.
func (m *MockPoolMember) AuthenticationToken() uint64 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AuthenticationToken")
	ret0, _ := ret[0].(uint64)
	return ret0
}

// AuthenticationToken indicates an expected call of AuthenticationToken.
func (mr *MockPoolMemberMockRecorder) AuthenticationToken() *MockPoolMemberAuthenticationTokenCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AuthenticationToken", reflect.TypeOf((*MockPoolMember)(nil).AuthenticationToken))
	return &MockPoolMemberAuthenticationTokenCall{Call: call}
}

// MockPoolMemberAuthenticationTokenCall wrap *gomock.Call.
type MockPoolMemberAuthenticationTokenCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberAuthenticationTokenCall) Return(arg0 uint64) *MockPoolMemberAuthenticationTokenCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberAuthenticationTokenCall) Do(f func() uint64) *MockPoolMemberAuthenticationTokenCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberAuthenticationTokenCall) DoAndReturn(f func() uint64) *MockPoolMemberAuthenticationTokenCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// ContractPuzzleHash mocks base method.
func (m *MockPoolMember) ContractPuzzleHash() types.Bytes32 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ContractPuzzleHash")
	ret0, _ := ret[0].(types.Bytes32)
	return ret0
}

// ContractPuzzleHash indicates an expected call of ContractPuzzleHash.
func (mr *MockPoolMemberMockRecorder) ContractPuzzleHash() *MockPoolMemberContractPuzzleHashCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ContractPuzzleHash", reflect.TypeOf((*MockPoolMember)(nil).ContractPuzzleHash))
	return &MockPoolMemberContractPuzzleHashCall{Call: call}
}

// MockPoolMemberContractPuzzleHashCall wrap *gomock.Call.
type MockPoolMemberContractPuzzleHashCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberContractPuzzleHashCall) Return(arg0 types.Bytes32) *MockPoolMemberContractPuzzleHashCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberContractPuzzleHashCall) Do(f func() types.Bytes32) *MockPoolMemberContractPuzzleHashCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberContractPuzzleHashCall) DoAndReturn(f func() types.Bytes32) *MockPoolMemberContractPuzzleHashCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// LauncherID mocks base method.
func (m *MockPoolMember) LauncherID() types.Bytes32 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LauncherID")
	ret0, _ := ret[0].(types.Bytes32)
	return ret0
}

// LauncherID indicates an expected call of LauncherID.
func (mr *MockPoolMemberMockRecorder) LauncherID() *MockPoolMemberLauncherIDCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LauncherID", reflect.TypeOf((*MockPoolMember)(nil).LauncherID))
	return &MockPoolMemberLauncherIDCall{Call: call}
}

// MockPoolMemberLauncherIDCall wrap *gomock.Call.
type MockPoolMemberLauncherIDCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberLauncherIDCall) Return(arg0 types.Bytes32) *MockPoolMemberLauncherIDCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberLauncherIDCall) Do(f func() types.Bytes32) *MockPoolMemberLauncherIDCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberLauncherIDCall) DoAndReturn(f func() types.Bytes32) *MockPoolMemberLauncherIDCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Ready mocks base method.
func (m *MockPoolMember) Ready() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Ready")
	ret0, _ := ret[0].(bool)
	return ret0
}

// Ready indicates an expected call of Ready.
func (mr *MockPoolMemberMockRecorder) Ready() *MockPoolMemberReadyCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ready", reflect.TypeOf((*MockPoolMember)(nil).Ready))
	return &MockPoolMemberReadyCall{Call: call}
}

// MockPoolMemberReadyCall wrap *gomock.Call.
type MockPoolMemberReadyCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberReadyCall) Return(arg0 bool) *MockPoolMemberReadyCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberReadyCall) Do(f func() bool) *MockPoolMemberReadyCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberReadyCall) DoAndReturn(f func() bool) *MockPoolMemberReadyCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Run mocks base method.
func (m *MockPoolMember) Run(arg0 context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Run", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// Run indicates an expected call of Run.
func (mr *MockPoolMemberMockRecorder) Run(arg0 any) *MockPoolMemberRunCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Run", reflect.TypeOf((*MockPoolMember)(nil).Run), arg0)
	return &MockPoolMemberRunCall{Call: call}
}

// MockPoolMemberRunCall wrap *gomock.Call.
type MockPoolMemberRunCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberRunCall) Return(arg0 error) *MockPoolMemberRunCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberRunCall) Do(f func(context.Context) error) *MockPoolMemberRunCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberRunCall) DoAndReturn(f func(context.Context) error) *MockPoolMemberRunCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// State mocks base method.
func (m *MockPoolMember) State() types.PoolState {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "State")
	ret0, _ := ret[0].(types.PoolState)
	return ret0
}

// State indicates an expected call of State.
func (mr *MockPoolMemberMockRecorder) State() *MockPoolMemberStateCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "State", reflect.TypeOf((*MockPoolMember)(nil).State))
	return &MockPoolMemberStateCall{Call: call}
}

// MockPoolMemberStateCall wrap *gomock.Call.
type MockPoolMemberStateCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberStateCall) Return(arg0 types.PoolState) *MockPoolMemberStateCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberStateCall) Do(f func() types.PoolState) *MockPoolMemberStateCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberStateCall) DoAndReturn(f func() types.PoolState) *MockPoolMemberStateCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Stats mocks base method.
func (m *MockPoolMember) Stats() types.PoolStats {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Stats")
	ret0, _ := ret[0].(types.PoolStats)
	return ret0
}

// Stats indicates an expected call of Stats.
func (mr *MockPoolMemberMockRecorder) Stats() *MockPoolMemberStatsCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stats", reflect.TypeOf((*MockPoolMember)(nil).Stats))
	return &MockPoolMemberStatsCall{Call: call}
}

// MockPoolMemberStatsCall wrap *gomock.Call.
type MockPoolMemberStatsCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberStatsCall) Return(arg0 types.PoolStats) *MockPoolMemberStatsCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberStatsCall) Do(f func() types.PoolStats) *MockPoolMemberStatsCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberStatsCall) DoAndReturn(f func() types.PoolStats) *MockPoolMemberStatsCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// SubmitPartial mocks base method.
func (m *MockPoolMember) SubmitPartial(arg0 context.Context, arg1 *types.Partial) (pool.Outcome, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SubmitPartial", arg0, arg1)
	ret0, _ := ret[0].(pool.Outcome)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SubmitPartial indicates an expected call of SubmitPartial.
func (mr *MockPoolMemberMockRecorder) SubmitPartial(arg0, arg1 any) *MockPoolMemberSubmitPartialCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SubmitPartial", reflect.TypeOf((*MockPoolMember)(nil).SubmitPartial), arg0, arg1)
	return &MockPoolMemberSubmitPartialCall{Call: call}
}

// MockPoolMemberSubmitPartialCall wrap *gomock.Call.
type MockPoolMemberSubmitPartialCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockPoolMemberSubmitPartialCall) Return(arg0 pool.Outcome, arg1 error) *MockPoolMemberSubmitPartialCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockPoolMemberSubmitPartialCall) Do(f func(context.Context, *types.Partial) (pool.Outcome, error)) *MockPoolMemberSubmitPartialCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockPoolMemberSubmitPartialCall) DoAndReturn(f func(context.Context, *types.Partial) (pool.Outcome, error)) *MockPoolMemberSubmitPartialCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockFullNode is a mock of FullNode interface.
type MockFullNode struct {
	ctrl     *gomock.Controller
	recorder *MockFullNodeMockRecorder
}

// MockFullNodeMockRecorder is the mock recorder for MockFullNode.
type MockFullNodeMockRecorder struct {
	mock *MockFullNode
}

// NewMockFullNode creates a new mock instance.
func NewMockFullNode(ctrl *gomock.Controller) *MockFullNode {
	mock := &MockFullNode{ctrl: ctrl}
	mock.recorder = &MockFullNodeMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockFullNode) EXPECT() *MockFullNodeMockRecorder {
	return m.recorder
}

// DeclareProofOfSpace mocks base method.
func (m *MockFullNode) DeclareProofOfSpace(arg0 context.Context, arg1 *wire.DeclareProofOfSpace) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeclareProofOfSpace", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// DeclareProofOfSpace indicates an expected call of DeclareProofOfSpace.
func (mr *MockFullNodeMockRecorder) DeclareProofOfSpace(arg0, arg1 any) *MockFullNodeDeclareProofOfSpaceCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeclareProofOfSpace", reflect.TypeOf((*MockFullNode)(nil).DeclareProofOfSpace), arg0, arg1)
	return &MockFullNodeDeclareProofOfSpaceCall{Call: call}
}

// MockFullNodeDeclareProofOfSpaceCall wrap *gomock.Call.
type MockFullNodeDeclareProofOfSpaceCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockFullNodeDeclareProofOfSpaceCall) Return(arg0 error) *MockFullNodeDeclareProofOfSpaceCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockFullNodeDeclareProofOfSpaceCall) Do(f func(context.Context, *wire.DeclareProofOfSpace) error) *MockFullNodeDeclareProofOfSpaceCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockFullNodeDeclareProofOfSpaceCall) DoAndReturn(f func(context.Context, *wire.DeclareProofOfSpace) error) *MockFullNodeDeclareProofOfSpaceCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Run mocks base method.
func (m *MockFullNode) Run(arg0 context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Run", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// Run indicates an expected call of Run.
func (mr *MockFullNodeMockRecorder) Run(arg0 any) *MockFullNodeRunCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Run", reflect.TypeOf((*MockFullNode)(nil).Run), arg0)
	return &MockFullNodeRunCall{Call: call}
}

// MockFullNodeRunCall wrap *gomock.Call.
type MockFullNodeRunCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockFullNodeRunCall) Return(arg0 error) *MockFullNodeRunCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockFullNodeRunCall) Do(f func(context.Context) error) *MockFullNodeRunCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockFullNodeRunCall) DoAndReturn(f func(context.Context) error) *MockFullNodeRunCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}
