package service

import (
	"context"
	"testing"

	"nominamx/internal/dto"
	"nominamx/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthFixture(t *testing.T) (AuthService, *stubUsuarioRepo) {
	t.Helper()
	repo := newStubUsuarioRepo()
	return NewAuthService(repo, newTestCfg()), repo
}

func seedUser(t *testing.T, repo *stubUsuarioRepo, username, password, rol string) *model.Usuario {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	require.NoError(t, err)
	u := &model.Usuario{
		Username:     username,
		Nombre:       "Usuario de prueba",
		PasswordHash: string(hash),
		Rol:          rol,
		Activo:       true,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedUser(t, repo, "nomina1", "clave-segura", model.RolNominista)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "nomina1", Password: "clave-segura"})
	require.NoError(t, err)

	assert.Equal(t, "bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, "nomina1", resp.User.Username)
	assert.Equal(t, model.RolNominista, resp.User.Rol)

	// Token claims carry identity and role
	token, err := jwt.Parse(resp.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret-de-pruebas"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "nomina1", claims["username"])
	assert.Equal(t, model.RolNominista, claims["rol"])
}

func TestLogin_CredencialesInvalidas(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedUser(t, repo, "nomina1", "clave-segura", model.RolNominista)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "nomina1", Password: "otra-clave"})
	assert.EqualError(t, err, "credenciales invalidas")

	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "no-existe", Password: "clave-segura"})
	assert.EqualError(t, err, "credenciales invalidas")
}

func TestLogin_UsuarioInactivo(t *testing.T) {
	svc, repo := newAuthFixture(t)
	u := seedUser(t, repo, "nomina1", "clave-segura", model.RolNominista)
	require.NoError(t, repo.SoftDelete(context.Background(), u.ID))

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "nomina1", Password: "clave-segura"})
	assert.EqualError(t, err, "credenciales invalidas")
}

func TestRefresh(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedUser(t, repo, "supervisor1", "clave-segura", model.RolSupervisor)

	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "supervisor1", Password: "clave-segura"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, "supervisor1", refreshed.User.Username)
}

func TestRefresh_TokenInvalido(t *testing.T) {
	svc, _ := newAuthFixture(t)
	_, err := svc.Refresh(context.Background(), "no-es-un-jwt")
	assert.Error(t, err)
}

func TestCrearUsuario(t *testing.T) {
	svc, repo := newAuthFixture(t)
	empresaID := uuid.NewString()

	resp, err := svc.CrearUsuario(context.Background(), dto.CrearUsuarioRequest{
		Username:  "sup.nueva",
		Nombre:    "Supervisora Nueva",
		Password:  "clave-muy-segura",
		Rol:       model.RolSupervisor,
		EmpresaID: &empresaID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.RolSupervisor, resp.Rol)
	require.NotNil(t, resp.EmpresaID)
	assert.Equal(t, empresaID, *resp.EmpresaID)
	assert.True(t, resp.Activo)

	// The password is stored hashed, never in the clear
	stored, err := repo.FindByUsername(context.Background(), "sup.nueva")
	require.NoError(t, err)
	assert.NotEqual(t, "clave-muy-segura", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("clave-muy-segura")))
}

func TestCrearUsuario_EmpresaInvalida(t *testing.T) {
	svc, _ := newAuthFixture(t)
	mala := "no-es-uuid"

	_, err := svc.CrearUsuario(context.Background(), dto.CrearUsuarioRequest{
		Username:  "x",
		Nombre:    "X",
		Password:  "clave-muy-segura",
		Rol:       model.RolNominista,
		EmpresaID: &mala,
	})
	assert.EqualError(t, err, "empresa_id invalido")
}

func TestActualizarUsuario(t *testing.T) {
	svc, repo := newAuthFixture(t)
	u := seedUser(t, repo, "nomina1", "clave-segura", model.RolNominista)

	resp, err := svc.ActualizarUsuario(context.Background(), u.ID, dto.ActualizarUsuarioRequest{
		Nombre: "Nombre Actualizado",
		Rol:    model.RolSupervisor,
	})
	require.NoError(t, err)
	assert.Equal(t, "Nombre Actualizado", resp.Nombre)
	assert.Equal(t, model.RolSupervisor, resp.Rol)
	// Untouched fields survive the partial update
	assert.Equal(t, "nomina1", resp.Username)
}

func TestDesactivarYReactivarUsuario(t *testing.T) {
	svc, repo := newAuthFixture(t)
	u := seedUser(t, repo, "nomina1", "clave-segura", model.RolNominista)

	require.NoError(t, svc.DesactivarUsuario(context.Background(), u.ID))
	activos, err := svc.ListarUsuarios(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, activos)

	todos, err := svc.ListarUsuarios(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, todos, 1)

	require.NoError(t, svc.ReactivarUsuario(context.Background(), u.ID))
	activos, err = svc.ListarUsuarios(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, activos, 1)
}
