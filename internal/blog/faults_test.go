package blog

import (
	"errors"

	"github.com/thoughtnest/thoughtnest/internal/database/mock"
)

func (suite *BlogTestSuite) faultyService() (*Service, *mock.MockDB) {
	db := mock.New(suite.db)
	svc := suite.newService(db)
	suite.T().Cleanup(func() { _ = svc.Close() })
	return svc, db
}

func (suite *BlogTestSuite) TestSettingsAreServedFromCache() {
	admin := suite.staff("root")
	svc, db := suite.faultyService()

	suite.Require().NoError(svc.InvalidateCaches(suite.ctx, admin))
	for range 3 {
		_, err := svc.Settings(suite.ctx)
		suite.Require().NoError(err)
	}
	suite.Equal(1, db.Calls("GetSiteSettings"))
}

func (suite *BlogTestSuite) TestFailedSettingsSaveKeepsCachedCopy() {
	admin := suite.staff("root")
	svc, db := suite.faultyService()

	db.FailOn("SaveSiteSettings", nil)
	_, err := svc.UpdateIdentity(suite.ctx, admin, IdentityInput{SiteName: "Broken"})
	suite.Require().ErrorIs(err, mock.ErrInjected)

	msg, known := UserMessage(err)
	suite.False(known)
	suite.NotContains(msg, "mock")

	settings, err := svc.Settings(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal("ThoughtNest", settings.SiteName)
}

func (suite *BlogTestSuite) TestSettingsReadFailureWithoutCache() {
	admin := suite.staff("root")
	svc, db := suite.faultyService()

	suite.Require().NoError(svc.InvalidateCaches(suite.ctx, admin))
	db.FailOn("GetSiteSettings", nil)

	_, err := svc.Settings(suite.ctx)
	suite.ErrorIs(err, mock.ErrInjected)
	_, err = svc.AddComment(suite.ctx, admin, 1, "Hi")
	suite.ErrorIs(err, mock.ErrInjected)

	db.Reset()
	_, err = svc.Settings(suite.ctx)
	suite.NoError(err)
}

func (suite *BlogTestSuite) TestFailedUserInsertIsNotAValidationError() {
	svc, db := suite.faultyService()
	boom := errors.New("disk full")
	db.FailOn("CreateUser", boom)

	_, err := svc.Register(suite.ctx, RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        testPassword,
		PasswordConfirm: testPassword,
	})
	suite.Require().ErrorIs(err, boom)
	suite.False(IsValidation(err))

	exists, err := suite.db.UsernameExists(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.False(exists)
}

func (suite *BlogTestSuite) TestFailedCommentInsertLeavesNoComment() {
	alice := suite.register("alice")
	post := suite.publish(alice, "Quiet")
	svc, db := suite.faultyService()

	db.FailOn("CreateComment", nil)
	_, err := svc.AddComment(suite.ctx, alice, post.ID, "Hi")
	suite.Require().ErrorIs(err, mock.ErrInjected)

	n, err := suite.db.CountComments(suite.ctx, nil)
	suite.Require().NoError(err)
	suite.Zero(n)
}

func (suite *BlogTestSuite) TestDashboardFailureIsNotCached() {
	admin := suite.staff("root")
	svc, db := suite.faultyService()

	db.FailOn("CountPosts", nil)
	_, err := svc.Dashboard(suite.ctx, admin)
	suite.Require().ErrorIs(err, mock.ErrInjected)

	db.Reset()
	dashboard, err := svc.Dashboard(suite.ctx, admin)
	suite.Require().NoError(err)
	suite.EqualValues(1, dashboard.Totals.Users)
}
