package service

import (
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"geoprivacy/internal/proof/backend"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/geo"
)

func (s *ServiceSuite) TestVerifyProof() {
	marker, err := geo.NewDefaultMarker(48.8566, 2.3522)
	s.Require().NoError(err)
	userID := newUserID()

	s.Run("fresh statement", func() {
		s.mockBackend.EXPECT().Verify(gomock.Any(), backend.Payload("p")).
			Return(backend.Statement{UserID: userID, Location: marker, GeneratedAt: fixedNow.Add(-time.Minute)}, nil)

		v, err := s.service.VerifyProof(s.ctx(), "p")
		s.Require().NoError(err)
		s.True(v.Fresh)
		s.Equal(marker.Hash(), v.LocationHash)
		s.Equal(userID, v.Statement.UserID)
	})

	s.Run("statement older than the window is stale", func() {
		s.mockBackend.EXPECT().Verify(gomock.Any(), gomock.Any()).
			Return(backend.Statement{UserID: userID, Location: marker, GeneratedAt: fixedNow.Add(-2 * time.Hour)}, nil)

		v, err := s.service.VerifyProof(s.ctx(), "p")
		s.Require().NoError(err)
		s.False(v.Fresh)
	})

	s.Run("rejected payload is a validation error", func() {
		s.mockBackend.EXPECT().Verify(gomock.Any(), gomock.Any()).
			Return(backend.Statement{}, errors.New("bad signature"))

		_, err := s.service.VerifyProof(s.ctx(), "p")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty payload", func() {
		_, err := s.service.VerifyProof(s.ctx(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
