package service

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/mock/gomock"

	"geoprivacy/internal/proof/models"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestGet() {
	s.Run("valid record not on the revocation list", func() {
		r := s.record(newUserID(), fixedNow.Add(-time.Minute))
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)
		s.mockRevocations.EXPECT().IsRevoked(gomock.Any(), r.Token.String()).Return(false, nil)

		got, valid, err := s.service.Get(s.ctx(), r.Token.String())
		s.Require().NoError(err)
		s.Equal(r.Token, got.Token)
		s.True(valid)
	})

	s.Run("expired record is reported invalid without an error", func() {
		r := s.record(newUserID(), fixedNow.Add(-2*time.Hour))
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)

		_, valid, err := s.service.Get(s.ctx(), r.Token.String())
		s.Require().NoError(err)
		s.False(valid)
	})

	s.Run("revoked token is invalid", func() {
		r := s.record(newUserID(), fixedNow)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)
		s.mockRevocations.EXPECT().IsRevoked(gomock.Any(), r.Token.String()).Return(true, nil)

		_, valid, err := s.service.Get(s.ctx(), r.Token.String())
		s.Require().NoError(err)
		s.False(valid)
	})

	s.Run("revocation lookup failure fails closed", func() {
		r := s.record(newUserID(), fixedNow)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), r.Token).Return(r, nil)
		s.mockRevocations.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

		_, valid, err := s.service.Get(s.ctx(), r.Token.String())
		s.Require().NoError(err)
		s.False(valid)
	})

	s.Run("unknown token is not found", func() {
		token := strings.Repeat("a", 64)
		s.mockStore.EXPECT().FindByToken(gomock.Any(), models.Token(token)).Return(nil, sentinel.ErrNotFound)

		_, _, err := s.service.Get(s.ctx(), token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed token is invalid input", func() {
		_, _, err := s.service.Get(s.ctx(), "not-a-token")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestNearby() {
	s.Run("delegates to the store with the request clock", func() {
		r := s.record(newUserID(), fixedNow)
		s.mockStore.EXPECT().FindValidNearby(gomock.Any(), 48.8566, 2.3522, 1000.0, fixedNow).
			Return([]*models.Record{r}, nil)

		got, err := s.service.Nearby(s.ctx(), 48.8566, 2.3522, 1000)
		s.Require().NoError(err)
		s.Len(got, 1)
	})

	for _, radius := range []float64{0, -5, DefaultMaxSearchRadius + 1} {
		s.Run("rejects radius out of bounds", func() {
			_, err := s.service.Nearby(s.ctx(), 48.8566, 2.3522, radius)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	s.Run("rejects out of range coordinates", func() {
		_, err := s.service.Nearby(s.ctx(), 0, 181, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure is internal", func() {
		s.mockStore.EXPECT().FindValidNearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("timeout"))

		_, err := s.service.Nearby(s.ctx(), 1, 1, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestListByUser() {
	userID := newUserID()
	r := s.record(userID, fixedNow)
	s.mockStore.EXPECT().ListByUser(gomock.Any(), userID).Return([]*models.Record{r}, nil)

	got, err := s.service.ListByUser(s.ctx(), userID)
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *ServiceSuite) TestStatuses() {
	s.Run("answers in input order and marks unknown tokens", func() {
		valid := s.record(newUserID(), fixedNow)
		expired := s.record(newUserID(), fixedNow.Add(-3*time.Hour))
		unknown := models.Token(strings.Repeat("b", 64))

		s.mockStore.EXPECT().
			ListByTokens(gomock.Any(), []models.Token{unknown, valid.Token, expired.Token}).
			Return([]*models.Record{expired, valid}, nil)
		s.mockRevocations.EXPECT().IsRevoked(gomock.Any(), valid.Token.String()).Return(false, nil)

		got, err := s.service.Statuses(s.ctx(), []string{
			unknown.String(), valid.Token.String(), expired.Token.String(), unknown.String(),
		})
		s.Require().NoError(err)
		s.Require().Len(got, 4)
		s.False(got[0].Found)
		s.True(got[1].Found)
		s.True(got[1].Valid)
		s.True(got[2].Found)
		s.False(got[2].Valid)
		s.Equal(unknown, got[3].Token)
		s.False(got[3].Found)
	})

	s.Run("rejects an empty batch", func() {
		_, err := s.service.Statuses(s.ctx(), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an oversized batch", func() {
		tokens := make([]string, MaxStatusBatch+1)
		for i := range tokens {
			tokens[i] = strings.Repeat("c", 64)
		}
		_, err := s.service.Statuses(s.ctx(), tokens)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("names the malformed entry", func() {
		_, err := s.service.Statuses(s.ctx(), []string{strings.Repeat("a", 64), "zz"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal("tokens[1] is not a valid token", dErrors.MessageOf(err))
	})
}
