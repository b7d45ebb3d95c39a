package service

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"geoprivacy/internal/audit"
	"geoprivacy/internal/proof/models"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestInvalidate() {
	s.Run("owner invalidates and the token is revoked for its remaining validity", func() {
		owner := newUserID()
		r := s.record(owner, fixedNow.Add(-15*time.Minute))
		before := testutil.ToFloat64(s.metrics.ProofsInvalidated)

		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)
		s.mockStore.EXPECT().Invalidate(gomock.Any(), r.Token, fixedNow).Return(nil)
		s.mockRevocations.EXPECT().Revoke(gomock.Any(), r.Token.String(), 45*time.Minute).Return(nil)
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, e audit.Event) error {
				s.Equal(audit.ActionProofInvalidated, e.Action)
				s.Equal(r.Token.String(), e.ProofToken)
				return nil
			})

		s.Require().NoError(s.service.Invalidate(s.ctx(), owner, r.Token.String()))
		s.Equal(before+1, testutil.ToFloat64(s.metrics.ProofsInvalidated))
	})

	s.Run("already invalid record is a silent success", func() {
		owner := newUserID()
		r := s.record(owner, fixedNow)
		r.Invalidate(fixedNow)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)

		s.NoError(s.service.Invalidate(s.ctx(), owner, r.Token.String()))
	})

	s.Run("unknown token is a silent success", func() {
		token := strings.Repeat("d", 64)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), models.Token(token)).Return(nil, sentinel.ErrNotFound)

		s.NoError(s.service.Invalidate(s.ctx(), newUserID(), token))
	})

	s.Run("another user's proof is forbidden", func() {
		r := s.record(newUserID(), fixedNow)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)

		err := s.service.Invalidate(s.ctx(), newUserID(), r.Token.String())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("expired proof is invalidated without a revocation entry", func() {
		owner := newUserID()
		r := s.record(owner, fixedNow.Add(-2*time.Hour))
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)
		s.mockStore.EXPECT().Invalidate(gomock.Any(), r.Token, fixedNow).Return(nil)
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		s.NoError(s.service.Invalidate(s.ctx(), owner, r.Token.String()))
	})

	s.Run("revocation list failure does not fail the request", func() {
		owner := newUserID()
		r := s.record(owner, fixedNow)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)
		s.mockStore.EXPECT().Invalidate(gomock.Any(), r.Token, fixedNow).Return(nil)
		s.mockRevocations.EXPECT().Revoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		s.NoError(s.service.Invalidate(s.ctx(), owner, r.Token.String()))
	})

	s.Run("store failure is internal", func() {
		owner := newUserID()
		r := s.record(owner, fixedNow)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)
		s.mockStore.EXPECT().Invalidate(gomock.Any(), r.Token, fixedNow).Return(errors.New("deadlock"))

		err := s.service.Invalidate(s.ctx(), owner, r.Token.String())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
