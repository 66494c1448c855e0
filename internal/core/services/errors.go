package services

import "errors"

// Терминальные ошибки сервисного слоя. Слой бота превращает их в ответы
// пользователю, поэтому различать их нужно через errors.Is, а не по тексту.
var (
	// ErrNothingToSubmit — буфер пользователя пуст, завершать нечего.
	ErrNothingToSubmit = errors.New("nothing to submit")
	// ErrAlreadyHandled — заявка уже изъята другим администратором.
	ErrAlreadyHandled = errors.New("submission already handled")
	// ErrBundleNotFound — по идентификатору из ссылки бандл не найден.
	ErrBundleNotFound = errors.New("bundle not found")
	// ErrFollowRequired — доставка заблокирована до подписки на канал.
	ErrFollowRequired = errors.New("follow required")
	// ErrPermissionDenied — операция доступна только администраторам.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoChannels — не привязан ни один канал для публикации.
	ErrNoChannels = errors.New("no bound channels")
	// ErrNoDraft — нет захваченного черновика рассылки для подтверждения.
	ErrNoDraft = errors.New("no broadcast draft")
)
