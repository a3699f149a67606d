package handler

import (
	"veilchat/internal/app/chat"
	"veilchat/internal/app/directory"
	"veilchat/internal/app/identity"
	"veilchat/internal/app/realtime"
	"veilchat/internal/app/storage"
	"veilchat/internal/app/store"
	"veilchat/internal/configs"
)

// AppDeps bundles the wired application services handed to every handler.
// Media is nil when no bucket is configured; the media routes are then
// not mounted at all.
type AppDeps struct {
	Config    *configs.AppConfig
	Store     store.Store
	Identity  identity.Service
	Directory *directory.Directory
	Chats     *chat.Service
	Hub       *realtime.Hub
	Media     storage.MediaService
}
